package renodeclient

import "time"

// PumpOnce dispatches the complete event frames that are already buffered
// or that arrive before readTimeout elapses. It is meant to be invoked by
// a background worker (see package queue) whenever the control socket is
// readable and no synchronous Exchange call is in flight.
//
// PumpOnce takes the same session lock Exchange does, so the two never
// race: if an Exchange is mid-flight, PumpOnce simply blocks until it
// finishes, then finds nothing left to do (Exchange already drained any
// interleaved events itself).
//
// readTimeout is a single read deadline for the whole call: PumpOnce keeps
// reading and dispatching complete event frames until the next byte
// starts a synchronous frame or the deadline passes, and a partial frame
// still pending at the deadline is left buffered for the next call. Pass
// a short timeout (tens of milliseconds) to approximate the peek/wait behaviour
// spec.md §4.4 describes for an edge- or level-triggered readable
// notification, since plain net.Conn offers no such notification
// directly.
func (c *Client) PumpOnce(readTimeout time.Duration) (dispatched int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return 0, ErrNotConnected
	}

	// Pull whatever is currently available into the buffered reader
	// without blocking past readTimeout. If nothing arrives, that's not
	// an error: there was simply nothing to pump this round.
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	if c.reader.Buffered() == 0 {
		if _, err := c.reader.Peek(1); err != nil {
			if isTimeout(err) {
				return 0, nil
			}
			c.closeLocked()
			return 0, NewConnectionError("pump read failed", err)
		}
	}

	for {
		first, err := c.reader.Peek(1)
		if err != nil {
			if isTimeout(err) {
				return dispatched, nil
			}
			c.closeLocked()
			return dispatched, NewConnectionError("pump read failed", err)
		}
		if ReturnCode(first[0]) != AsyncEvent {
			// A synchronous frame is pending; it belongs to Exchange.
			return dispatched, nil
		}

		if c.reader.Buffered() < 10 {
			if _, err := c.reader.Peek(10); err != nil {
				if isTimeout(err) {
					return dispatched, nil
				}
				c.closeLocked()
				return dispatched, NewConnectionError("pump read failed", err)
			}
		}

		size := bufferedEventFrameSize(c.reader)
		if size < 0 {
			return dispatched, nil
		}
		total := 10 + size
		if c.reader.Buffered() < total {
			if _, err := c.reader.Peek(total); err != nil {
				if isTimeout(err) {
					// Partial frame remains untouched in the buffer;
					// wait for the next pump invocation.
					return dispatched, nil
				}
				c.closeLocked()
				return dispatched, NewConnectionError("pump read failed", err)
			}
		}

		// The complete frame is now available; consume it destructively.
		if _, err := readExactFrom(c.reader, 1); err != nil { // ASYNC_EVENT byte
			c.closeLocked()
			return dispatched, err
		}
		if err := c.readAndDispatchEventLocked(); err != nil {
			c.closeLocked()
			return dispatched, err
		}
		dispatched++
	}
}

// isTimeout reports whether err originates from a read deadline expiring.
func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok {
		return t.Timeout()
	}
	return false
}
