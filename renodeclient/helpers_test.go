package renodeclient

import (
	"io"
	"net"
)

// readRequestFrame reads one request frame off conn: 'R' 'E' cmd u32(len)
// payload. It is the mock-server-side counterpart to Exchange's writer,
// used by tests to assert exactly what bytes a given call puts on the
// wire.
func readRequestFrame(conn net.Conn) (cmd ApiCommand, payload []byte, err error) {
	head := make([]byte, 7)
	if _, err := io.ReadFull(conn, head); err != nil {
		return 0, nil, err
	}
	if head[0] != 'R' || head[1] != 'E' {
		return 0, nil, io.ErrUnexpectedEOF
	}
	cmd = ApiCommand(head[2])
	size := getUint32(head[3:7])
	payload = make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(conn, payload); err != nil {
			return 0, nil, err
		}
	}
	return cmd, payload, nil
}

// successWithDataFrame builds a SUCCESS_WITH_DATA response: code, echoed
// command, u32 length, data.
func successWithDataFrame(command ApiCommand, data []byte) []byte {
	buf := []byte{byte(SuccessWithData), byte(command)}
	lenBuf := make([]byte, 4)
	putUint32(lenBuf, uint32(len(data)))
	buf = append(buf, lenBuf...)
	buf = append(buf, data...)
	return buf
}

// successWithoutDataFrame builds a SUCCESS_WITHOUT_DATA response.
func successWithoutDataFrame(command ApiCommand) []byte {
	return []byte{byte(SuccessWithoutData), byte(command)}
}

// commandFailedFrame builds a COMMAND_FAILED response carrying message.
func commandFailedFrame(command ApiCommand, message string) []byte {
	buf := []byte{byte(CommandFailed), byte(command)}
	lenBuf := make([]byte, 4)
	putUint32(lenBuf, uint32(len(message)))
	buf = append(buf, lenBuf...)
	buf = append(buf, []byte(message)...)
	return buf
}

// fatalErrorFrame builds a FATAL_ERROR response. No echoed command byte.
func fatalErrorFrame(message string) []byte {
	buf := []byte{byte(FatalError)}
	lenBuf := make([]byte, 4)
	putUint32(lenBuf, uint32(len(message)))
	buf = append(buf, lenBuf...)
	buf = append(buf, []byte(message)...)
	return buf
}

// invalidCommandFrame builds an INVALID_COMMAND response.
func invalidCommandFrame(command ApiCommand) []byte {
	return []byte{byte(InvalidCommand), byte(command)}
}

// injectEventHandler installs cb directly under descriptor id, bypassing
// the normal monotonic register() allocation. Used by scenario tests that
// need a specific, pre-known descriptor value.
func injectEventHandler(r *eventRegistry, id uint32, cb eventCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = cb
}

// eventFrame builds one ASYNC_EVENT frame: code, event command byte, u32
// descriptor, u32 length, data.
func eventFrame(eventCommand ApiCommand, descriptor uint32, data []byte) []byte {
	buf := []byte{byte(AsyncEvent), byte(eventCommand)}
	edBuf := make([]byte, 4)
	putUint32(edBuf, descriptor)
	buf = append(buf, edBuf...)
	lenBuf := make([]byte, 4)
	putUint32(lenBuf, uint32(len(data)))
	buf = append(buf, lenBuf...)
	buf = append(buf, data...)
	return buf
}
