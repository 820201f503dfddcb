package renodeclient

// SysBusPeripheral addresses the system bus of one machine. Obtain one
// via MachineFacade.GetSysBus.
type SysBusPeripheral struct {
	peripheralHandle
}

// GetSysBus registers the SysBus peripheral and returns a handle to it.
func (m *MachineFacade) GetSysBus(path string) (*SysBusPeripheral, error) {
	id, err := m.registerPeripheral(SystemBus, path)
	if err != nil {
		return nil, err
	}
	return &SysBusPeripheral{peripheralHandle{path: path, machine: m, instanceID: id}}, nil
}

// BusContext addresses a context on the system bus (e.g. a specific CPU's
// view of memory). It inherits its parent SysBus's instanceID: no
// separate registration handshake is performed.
type BusContext struct {
	peripheralHandle
}

// Context returns a BusContext sharing this SysBusPeripheral's instance
// identifier.
func (s *SysBusPeripheral) Context() *BusContext {
	return &BusContext{peripheralHandle{path: s.path, machine: s.machine, instanceID: s.instanceID}}
}

// Read performs a single READ sub-command, returning count elements of
// width bytes each (MULTI_BYTE defaults to 1 byte per element).
func (b *BusContext) Read(address uint64, width AccessWidth, count uint32) ([]byte, error) {
	if err := b.requireRegistered(); err != nil {
		return nil, err
	}
	payload := sysBusHeader(b.instanceID, sysBusRead, width, address, count)
	data, err := b.machine.client.Exchange(SystemBus, payload)
	if err != nil {
		return nil, err
	}
	want := int(count) * width.bytesPerElement()
	if len(data) != want {
		return nil, newDesyncError(SuccessWithData, "SysBus READ response size mismatch")
	}
	return data, nil
}

// Write performs a single WRITE sub-command, sending count elements of
// width bytes each from data.
func (b *BusContext) Write(address uint64, width AccessWidth, count uint32, data []byte) error {
	if err := b.requireRegistered(); err != nil {
		return err
	}
	want := int(count) * width.bytesPerElement()
	if len(data) != want {
		return newDesyncError(SuccessWithData, "SysBus WRITE payload size mismatch")
	}
	payload := sysBusHeader(b.instanceID, sysBusWrite, width, address, count)
	payload = append(payload, data...)

	_, err := b.machine.client.Exchange(SystemBus, payload)
	return err
}

// ReadValue reads a single width-sized element at address, returning it
// as a little-endian uint64 regardless of the element's actual width.
func (b *BusContext) ReadValue(address uint64, width AccessWidth) (uint64, error) {
	data, err := b.Read(address, width, 1)
	if err != nil {
		return 0, err
	}
	return decodeLittleEndianValue(data), nil
}

// WriteValue writes a single width-sized element at address, encoding
// value as little-endian and truncating to the element's byte width.
func (b *BusContext) WriteValue(address uint64, width AccessWidth, value uint64) error {
	n := width.bytesPerElement()
	data := make([]byte, n)
	for i := 0; i < n; i++ {
		data[i] = byte(value >> (8 * i))
	}
	return b.Write(address, width, 1, data)
}

func decodeLittleEndianValue(data []byte) uint64 {
	var v uint64
	for i, b := range data {
		v |= uint64(b) << (8 * i)
	}
	return v
}

func sysBusHeader(instanceID int32, op sysBusOp, width AccessWidth, address uint64, count uint32) []byte {
	buf := make([]byte, 4+1+1+8+4)
	putInt32(buf[0:4], instanceID)
	buf[4] = byte(op)
	buf[5] = byte(width)
	putUint64(buf[6:14], address)
	putUint32(buf[14:18], count)
	return buf
}
