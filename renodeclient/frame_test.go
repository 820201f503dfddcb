package renodeclient

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

// serveHandshakeOK consumes the fixed-shape handshake request and replies
// with a single OK_HANDSHAKE byte.
func serveHandshakeOK(t *testing.T, conn net.Conn) {
	t.Helper()
	countBuf := make([]byte, 2)
	if _, err := io.ReadFull(conn, countBuf); err != nil {
		t.Fatalf("reading handshake count: %v", err)
	}
	count := int(getUint16(countBuf))
	pairs := make([]byte, count*2)
	if _, err := io.ReadFull(conn, pairs); err != nil {
		t.Fatalf("reading handshake pairs: %v", err)
	}
	if _, err := conn.Write([]byte{byte(OKHandshake)}); err != nil {
		t.Fatalf("writing handshake reply: %v", err)
	}
}

// connectAndHandshake dials addr and returns the connected client. It does
// not perform the handshake (each test calls Handshake itself) and does
// not use serve.
func connectAndHandshake(t *testing.T, addr string, serve func(conn net.Conn)) *Client {
	t.Helper()
	c := NewClient()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx, addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Disconnect)
	return c
}

func TestHandshakeSendsExactVersionTableAndAcceptsOK(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		countBuf := make([]byte, 2)
		if _, err := io.ReadFull(conn, countBuf); err != nil {
			return
		}
		count := int(getUint16(countBuf))
		if count != len(handshakeVersions) {
			t.Errorf("handshake count = %d, want %d", count, len(handshakeVersions))
		}
		pairs := make([]byte, count*2)
		if _, err := io.ReadFull(conn, pairs); err != nil {
			return
		}
		for i, v := range handshakeVersions {
			gotCmd, gotVer := pairs[i*2], pairs[i*2+1]
			if gotCmd != byte(v.Command) || gotVer != v.Version {
				t.Errorf("handshake pair %d = (%d,%d), want (%d,%d)", i, gotCmd, gotVer, v.Command, v.Version)
			}
		}
		conn.Write([]byte{byte(OKHandshake)})
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Handshake(ctx); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
}

func TestHandshakeFailsOnNonOKReply(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		countBuf := make([]byte, 2)
		io.ReadFull(conn, countBuf)
		count := int(getUint16(countBuf))
		io.ReadFull(conn, make([]byte, count*2))
		conn.Write([]byte{byte(FatalError)})
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Handshake(ctx); !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("Handshake err = %v, want ErrHandshakeFailed", err)
	}
}

func TestExchangeSuccessWithData(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		serveHandshakeOK(t, conn)
		cmd, payload, err := readRequestFrame(conn)
		if err != nil {
			t.Errorf("reading request: %v", err)
			return
		}
		if cmd != GetTime || len(payload) != 8 {
			t.Errorf("unexpected request: cmd=%v payload=%v", cmd, payload)
		}
		conn.Write(successWithDataFrame(GetTime, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Handshake(ctx); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	data, err := c.Exchange(GetTime, make([]byte, 8))
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if string(data) != string(want) {
		t.Fatalf("Exchange data = %v, want %v", data, want)
	}
}

func TestExchangeSuccessWithoutData(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		serveHandshakeOK(t, conn)
		cmd, _, _ := readRequestFrame(conn)
		if cmd != RunFor {
			t.Errorf("unexpected command %v", cmd)
		}
		conn.Write(successWithoutDataFrame(RunFor))
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Handshake(ctx)
	data, err := c.Exchange(RunFor, make([]byte, 8))
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if data != nil {
		t.Fatalf("Exchange data = %v, want nil", data)
	}
}

func TestExchangeCommandFailedSurfacesProtocolError(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		serveHandshakeOK(t, conn)
		readRequestFrame(conn)
		conn.Write(commandFailedFrame(GetTime, "boom"))
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Handshake(ctx)
	_, err := c.Exchange(GetTime, make([]byte, 8))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Exchange err = %v, want *ProtocolError", err)
	}
	if protoErr.Desync {
		t.Errorf("COMMAND_FAILED must not be treated as a desync")
	}
	if protoErr.Message != "boom" {
		t.Errorf("ProtocolError.Message = %q, want %q", protoErr.Message, "boom")
	}
}

func TestExchangeFatalErrorHasNoEchoedCommandByte(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		serveHandshakeOK(t, conn)
		readRequestFrame(conn)
		conn.Write(fatalErrorFrame("server panicked"))
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Handshake(ctx)
	_, err := c.Exchange(GetTime, make([]byte, 8))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Exchange err = %v, want *ProtocolError", err)
	}
	if protoErr.Code != FatalError {
		t.Errorf("ProtocolError.Code = %v, want FatalError", protoErr.Code)
	}
	if protoErr.Desync {
		t.Errorf("FATAL_ERROR must not be treated as a desync")
	}
}

func TestExchangeInvalidCommand(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		serveHandshakeOK(t, conn)
		readRequestFrame(conn)
		conn.Write(invalidCommandFrame(GetTime))
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Handshake(ctx)
	_, err := c.Exchange(GetTime, make([]byte, 8))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) || protoErr.Code != InvalidCommand {
		t.Fatalf("Exchange err = %v, want ProtocolError{Code: InvalidCommand}", err)
	}
}

func TestExchangeDrainsInterleavedEventsBeforeReturning(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		serveHandshakeOK(t, conn)
		readRequestFrame(conn)
		conn.Write(eventFrame(Gpio, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8, 1}))
		conn.Write(eventFrame(Gpio, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8, 0}))
		conn.Write(successWithDataFrame(GetTime, []byte{9, 9, 9, 9, 9, 9, 9, 9}))
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Handshake(ctx)

	var order []byte
	ed := c.events.register(func(cmd ApiCommand, data []byte) {
		order = append(order, data[len(data)-1])
	})
	defer c.events.unregister(ed)

	data, err := c.Exchange(GetTime, make([]byte, 8))
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if string(data) != string([]byte{9, 9, 9, 9, 9, 9, 9, 9}) {
		t.Fatalf("Exchange data = %v", data)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 0 {
		t.Fatalf("events dispatched in wrong order: %v", order)
	}
}

func TestExchangeEchoedCommandMismatchClosesConnection(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		serveHandshakeOK(t, conn)
		readRequestFrame(conn)
		// Echo the wrong command byte after SUCCESS_WITH_DATA.
		conn.Write([]byte{byte(SuccessWithData), byte(RunFor)})
		lenBuf := make([]byte, 4)
		putUint32(lenBuf, 0)
		conn.Write(lenBuf)
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Handshake(ctx)

	_, err := c.Exchange(GetTime, make([]byte, 8))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) || !protoErr.Desync {
		t.Fatalf("Exchange err = %v, want a desync ProtocolError", err)
	}
	if c.IsConnected() {
		t.Fatalf("connection must be closed after a desync")
	}
	if _, err := c.Exchange(GetTime, make([]byte, 8)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Exchange after desync = %v, want ErrNotConnected", err)
	}
}

func TestExchangeTruncatedEventPayloadSurfacesConnectionError(t *testing.T) {
	addr := startMockControlServer(t, func(conn net.Conn) {
		serveHandshakeOK(t, conn)
		readRequestFrame(conn)
		// Announce a 9-byte event payload but send only 3 bytes then close.
		lenBuf := make([]byte, 4)
		putUint32(lenBuf, 9)
		buf := []byte{byte(AsyncEvent), byte(Gpio)}
		edBuf := make([]byte, 4)
		putUint32(edBuf, 0)
		buf = append(buf, edBuf...)
		buf = append(buf, lenBuf...)
		conn.Write(buf)
		conn.Write([]byte{1, 2, 3})
		conn.Close()
	})

	c := connectAndHandshake(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Handshake(ctx)

	invoked := false
	ed := c.events.register(func(cmd ApiCommand, data []byte) { invoked = true })
	defer c.events.unregister(ed)

	_, err := c.Exchange(GetTime, make([]byte, 8))
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Exchange err = %v, want *ConnectionError", err)
	}
	if invoked {
		t.Fatalf("callback must not run for a truncated event frame")
	}
}
