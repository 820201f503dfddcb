package renodeclient

// peripheralHandle is the state common to GpioPeripheral, AdcPeripheral,
// and SysBusPeripheral: the peripheral's path, a back-reference to its
// owning machine, and the server-assigned instance identifier.
// instanceID < 0 means registration never completed (or failed); every
// sub-command operation must refuse to run in that state.
type peripheralHandle struct {
	path       string
	machine    *MachineFacade
	instanceID int32
}

// Path returns the peripheral's dotted path under the system bus.
func (h *peripheralHandle) Path() string { return h.path }

// InstanceID returns the server-assigned instance identifier, or a
// negative value if registration never completed.
func (h *peripheralHandle) InstanceID() int32 { return h.instanceID }

// Registered reports whether this peripheral completed its registration
// handshake.
func (h *peripheralHandle) Registered() bool { return h.instanceID >= 0 }

func (h *peripheralHandle) requireRegistered() error {
	if !h.Registered() {
		return ErrNotRegistered
	}
	return nil
}
