package renodeclient

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MachineFacade aggregates the client session, an optional monitor
// session, and the peripheral registry for one named machine: lifecycle
// (pause/resume/reset/loadConfiguration), time (runFor/getTime), and
// peripheral creation. Obtain one via Client.GetMachine.
type MachineFacade struct {
	name       string
	descriptor int32
	client     *Client
	monitor    *MonitorSession
}

// Name returns the machine's name as registered with the server.
func (m *MachineFacade) Name() string { return m.name }

// Descriptor returns the server-assigned machine descriptor. Peripherals
// may only be constructed for a machine whose descriptor is non-negative.
func (m *MachineFacade) Descriptor() int32 { return m.descriptor }

// AttachMonitor binds a monitor session to this facade so lifecycle and
// discovery verbs (Pause, Resume, Reset, LoadConfiguration,
// ListPeripherals, IsRunning) can be issued.
func (m *MachineFacade) AttachMonitor(monitor *MonitorSession) {
	m.monitor = monitor
}

// GetMachine performs the GET_MACHINE exchange and returns a MachineFacade
// for name, caching it so repeated calls for the same name return the
// same object while the session remains connected.
func (c *Client) GetMachine(name string) (*MachineFacade, error) {
	c.mu.Lock()
	if m, ok := c.cachedMachine(name); ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	payload := appendString(nil, name)
	data, err := c.Exchange(GetMachine, payload)
	if err != nil {
		return nil, err
	}
	if len(data) != 4 {
		return nil, newDesyncError(SuccessWithData, "GET_MACHINE response must be 4 bytes")
	}
	descriptor := getInt32(data)
	if descriptor < 0 {
		return nil, ErrMachineNotFound
	}

	m := &MachineFacade{name: name, descriptor: descriptor, client: c}
	c.mu.Lock()
	c.cacheMachine(name, m)
	c.mu.Unlock()
	return m, nil
}

// RunFor advances simulated time by the given duration expressed in unit,
// blocking until the server reports completion.
func (m *MachineFacade) RunFor(duration uint64, unit TimeUnit) error {
	microseconds := duration * uint64(unit)
	payload := make([]byte, 8)
	putUint64(payload, microseconds)
	_, err := m.client.Exchange(RunFor, payload)
	return err
}

// GetTime returns the current simulation time expressed in unit.
func (m *MachineFacade) GetTime(unit TimeUnit) (uint64, error) {
	data, err := m.client.Exchange(GetTime, make([]byte, 8))
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, newDesyncError(SuccessWithData, "GET_TIME response must be 8 bytes")
	}
	return getUint64(data) / uint64(unit), nil
}

// Pause suspends the machine via the monitor channel.
func (m *MachineFacade) Pause() error {
	_, err := m.monitor.Pause()
	return err
}

// Resume resumes the machine via the monitor channel.
func (m *MachineFacade) Resume() error {
	_, err := m.monitor.Start()
	return err
}

// Reset issues a full machine reset via the monitor channel.
func (m *MachineFacade) Reset() error {
	_, err := m.monitor.Reset()
	return err
}

// LoadConfiguration loads a platform description or ELF image, choosing
// the verb by the path's extension: a case-insensitive ".elf" extension
// loads via sysbus LoadELF, anything else loads via
// machine LoadPlatformDescription.
func (m *MachineFacade) LoadConfiguration(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".elf") {
		_, err := m.monitor.LoadELF(path)
		return err
	}
	_, err := m.monitor.LoadPlatformDescription(path)
	return err
}

// IsRunning runs "emulation IsStarted" and parses the result.
func (m *MachineFacade) IsRunning() (bool, error) {
	out, err := m.monitor.Execute("emulation IsStarted")
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "True"), nil
}

// DiscoveredPeripheral describes one entry parsed from the monitor's
// "peripherals" listing.
type DiscoveredPeripheral struct {
	Path string
	Type string
}

// ListPeripherals runs the "peripherals" monitor verb and parses its
// output per spec.md §4.8: any line ending in ":" begins a new bus
// section; other non-empty lines of the shape "<name> (<type>)" are
// peripherals under that bus (path "<bus>.<name>", or just "<name>" with
// no bus yet seen). Lines matching neither shape are skipped.
func (m *MachineFacade) ListPeripherals() ([]DiscoveredPeripheral, error) {
	out, err := m.monitor.Execute("peripherals")
	if err != nil {
		return nil, err
	}
	return parsePeripheralsListing(out), nil
}

func parsePeripheralsListing(out string) []DiscoveredPeripheral {
	var results []DiscoveredPeripheral
	bus := ""
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		if trimmed == "" {
			continue
		}
		stripped := strings.TrimSpace(trimmed)
		if stripped == "" {
			continue
		}
		if strings.HasSuffix(stripped, ":") {
			bus = strings.TrimSuffix(stripped, ":")
			continue
		}
		name, typ, ok := parsePeripheralLine(stripped)
		if !ok {
			continue
		}
		path := name
		if bus != "" {
			path = bus + "." + name
		}
		results = append(results, DiscoveredPeripheral{Path: path, Type: typ})
	}
	return results
}

// parsePeripheralLine parses "<name> (<type>)" into its two parts.
func parsePeripheralLine(line string) (name, typ string, ok bool) {
	open := strings.LastIndex(line, "(")
	closeIdx := strings.LastIndex(line, ")")
	if open < 0 || closeIdx < open {
		return "", "", false
	}
	name = strings.TrimSpace(line[:open])
	typ = line[open+1 : closeIdx]
	if name == "" {
		return "", "", false
	}
	return name, typ, true
}

// registerPeripheral performs the common registration handshake shared by
// GPIO, ADC, and SysBus: payload = i32(-1) || i32(descriptor) ||
// writeString(path); response must be exactly 4 bytes holding the signed
// instance identifier. A negative identifier means registration failed.
func (m *MachineFacade) registerPeripheral(command ApiCommand, path string) (int32, error) {
	if m.descriptor < 0 {
		return -1, fmt.Errorf("machine %q has no valid descriptor", m.name)
	}
	payload := make([]byte, 0, 8+4+len(path))
	buf4 := make([]byte, 4)
	putInt32(buf4, -1)
	payload = append(payload, buf4...)
	putInt32(buf4, m.descriptor)
	payload = append(payload, buf4...)
	payload = appendString(payload, path)

	data, err := m.client.Exchange(command, payload)
	if err != nil {
		return -1, err
	}
	if len(data) != 4 {
		return -1, newDesyncError(SuccessWithData, "peripheral registration response must be 4 bytes")
	}
	return getInt32(data), nil
}
