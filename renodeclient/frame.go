package renodeclient

import (
	"context"
	"io"
	"time"
)

// requestMagic is the two-byte prefix ('R', 'E') at the head of every
// request frame (the handshake is the sole exception: it has its own
// framing with no magic and no length prefix).
var requestMagic = [2]byte{'R', 'E'}

// Handshake sends the fixed command/version table and waits for a single
// OK_HANDSHAKE byte. It must be called exactly once, immediately after
// Connect, before any Exchange call.
func (c *Client) Handshake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	payload := make([]byte, 0, 2+2*len(handshakeVersions))
	lenBuf := make([]byte, 2)
	putUint16(lenBuf, uint16(len(handshakeVersions)))
	payload = append(payload, lenBuf...)
	for _, v := range handshakeVersions {
		payload = append(payload, byte(v.Command), v.Version)
	}

	if err := writeAll(c.conn, payload); err != nil {
		c.closeLocked()
		return err
	}

	reply, err := readExactFrom(c.reader, 1)
	if err != nil {
		c.closeLocked()
		return err
	}
	if ReturnCode(reply[0]) != OKHandshake {
		c.closeLocked()
		return ErrHandshakeFailed
	}
	return nil
}

// Exchange performs one synchronous request/response round trip: it
// writes the request frame, then drains any number of interleaved
// asynchronous event frames before returning the response payload (or an
// error synthesized from a non-success return code).
//
// Exchange holds the session lock for its entire duration, which is what
// guarantees the event pump (PumpOnce) never races it: both touch the
// socket only while holding the same mutex, per spec.md §4.5's threading
// requirement.
func (c *Client) Exchange(command ApiCommand, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchangeLocked(command, payload)
}

func (c *Client) exchangeLocked(command ApiCommand, payload []byte) ([]byte, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}

	header := make([]byte, 0, 7+len(payload))
	header = append(header, requestMagic[0], requestMagic[1], byte(command))
	lenBuf := make([]byte, 4)
	putUint32(lenBuf, uint32(len(payload)))
	header = append(header, lenBuf...)
	header = append(header, payload...)

	if err := writeAll(c.conn, header); err != nil {
		c.closeLocked()
		return nil, err
	}

	for {
		codeByte, err := readExactFrom(c.reader, 1)
		if err != nil {
			c.closeLocked()
			return nil, err
		}
		code := ReturnCode(codeByte[0])

		if code == AsyncEvent {
			if err := c.readAndDispatchEventLocked(); err != nil {
				c.closeLocked()
				return nil, err
			}
			continue
		}

		switch code {
		case CommandFailed, InvalidCommand, SuccessWithData, SuccessWithoutData:
			echoed, err := readExactFrom(c.reader, 1)
			if err != nil {
				c.closeLocked()
				return nil, err
			}
			if ApiCommand(echoed[0]) != command {
				c.closeLocked()
				return nil, newDesyncError(code, "echoed command mismatch")
			}
		case FatalError:
			// No echoed command byte for FATAL_ERROR.
		case OKHandshake:
			c.closeLocked()
			return nil, newDesyncError(code, "unexpected handshake byte outside handshake")
		default:
			c.closeLocked()
			return nil, newDesyncError(code, "unrecognized return code")
		}

		switch code {
		case SuccessWithoutData:
			return nil, nil
		case InvalidCommand:
			return nil, newCommandFailedError(code, "")
		case CommandFailed, FatalError, SuccessWithData:
			data, err := c.readSizedPayloadLocked()
			if err != nil {
				c.closeLocked()
				return nil, err
			}
			if code == SuccessWithData {
				return data, nil
			}
			return nil, newCommandFailedError(code, string(data))
		}

		// Unreachable: every case above returns.
		c.closeLocked()
		return nil, newDesyncError(code, "unhandled return code")
	}
}

// readSizedPayloadLocked reads a u32 little-endian size followed by that
// many payload bytes. Caller must hold mu.
func (c *Client) readSizedPayloadLocked() ([]byte, error) {
	sizeBuf, err := readExactFrom(c.reader, 4)
	if err != nil {
		return nil, err
	}
	size := getUint32(sizeBuf)
	return readExactFrom(c.reader, int(size))
}

// readAndDispatchEventLocked reads one complete event frame body
// (everything after the already-consumed ASYNC_EVENT byte) and invokes
// the registered callback, if any. Caller must hold mu.
func (c *Client) readAndDispatchEventLocked() error {
	header, err := readExactFrom(c.reader, 1+4+4)
	if err != nil {
		return err
	}
	cmd := ApiCommand(header[0])
	ed := getUint32(header[1:5])
	size := getUint32(header[5:9])

	data, err := readExactFrom(c.reader, int(size))
	if err != nil {
		return err
	}

	c.events.invoke(ed, cmd, data)
	return nil
}

// readExactFrom reads exactly n bytes from r, looping over partial reads
// and surfacing EOF/reset as a ConnectionError.
func readExactFrom(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, NewConnectionError("short read", err)
	}
	return buf, nil
}

// bufferedEventFrameSize returns the declared size of a pending
// ASYNC_EVENT frame whose first 10 bytes are already available in r's
// lookahead buffer, or -1 if fewer than 10 bytes are buffered or the
// buffered frame is not an event frame.
func bufferedEventFrameSize(r *frameReader) int {
	if r.Buffered() < 10 {
		return -1
	}
	head, err := r.Peek(10)
	if err != nil {
		return -1
	}
	if ReturnCode(head[0]) != AsyncEvent {
		return -1
	}
	return int(getUint32(head[6:10]))
}
