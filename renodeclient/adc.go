package renodeclient

// AdcPeripheral addresses one registered ADC peripheral. Obtain one via
// MachineFacade.GetAdc.
//
// The wire carries raw channel values as a 4-byte little-endian integer;
// the public API exposes the semantic reading as a float64, converting
// with float64(rawU32) on read and uint32(value) on write. This is a
// documented precision limitation (spec.md §9): values outside the
// uint32 range, or requiring sub-integer precision on the wire, cannot
// round-trip exactly.
type AdcPeripheral struct {
	peripheralHandle
}

// GetAdc registers an ADC peripheral at path and returns a handle to it.
func (m *MachineFacade) GetAdc(path string) (*AdcPeripheral, error) {
	id, err := m.registerPeripheral(Adc, path)
	if err != nil {
		return nil, err
	}
	return &AdcPeripheral{peripheralHandle{path: path, machine: m, instanceID: id}}, nil
}

// GetChannelCount returns the number of channels this ADC exposes.
func (a *AdcPeripheral) GetChannelCount() (uint32, error) {
	if err := a.requireRegistered(); err != nil {
		return 0, err
	}
	payload := adcSubcommandHeader(a.instanceID, adcGetChannelCount)
	data, err := a.machine.client.Exchange(Adc, payload)
	if err != nil {
		return 0, err
	}
	if len(data) != 4 {
		return 0, newDesyncError(SuccessWithData, "GET_CHANNEL_COUNT response must be 4 bytes")
	}
	return getUint32(data), nil
}

// GetChannelValue reads channel's raw value and converts it to its
// semantic floating-point reading.
func (a *AdcPeripheral) GetChannelValue(channel int32) (float64, error) {
	if err := a.requireRegistered(); err != nil {
		return 0, err
	}
	payload := adcSubcommandHeader(a.instanceID, adcGetChannelValue)
	chanBuf := make([]byte, 4)
	putInt32(chanBuf, channel)
	payload = append(payload, chanBuf...)

	data, err := a.machine.client.Exchange(Adc, payload)
	if err != nil {
		return 0, err
	}
	if len(data) != 4 {
		return 0, newDesyncError(SuccessWithData, "GET_CHANNEL_VALUE response must be 4 bytes")
	}
	return float64(getUint32(data)), nil
}

// SetChannelValue writes value to channel after converting it to its raw
// 4-byte representation.
func (a *AdcPeripheral) SetChannelValue(channel int32, value float64) error {
	if err := a.requireRegistered(); err != nil {
		return err
	}
	payload := adcSubcommandHeader(a.instanceID, adcSetChannelValue)
	chanBuf := make([]byte, 4)
	putInt32(chanBuf, channel)
	payload = append(payload, chanBuf...)
	rawBuf := make([]byte, 4)
	putUint32(rawBuf, uint32(value))
	payload = append(payload, rawBuf...)

	_, err := a.machine.client.Exchange(Adc, payload)
	return err
}

func adcSubcommandHeader(instanceID int32, sub adcSubcommand) []byte {
	buf := make([]byte, 5)
	putInt32(buf[0:4], instanceID)
	buf[4] = byte(sub)
	return buf
}
