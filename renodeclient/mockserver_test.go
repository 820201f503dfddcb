package renodeclient

import (
	"net"
	"testing"
)

// startMockControlServer listens on an ephemeral TCP port and runs serve
// against each accepted connection. It mirrors the teacher's
// startMockServer helper, generalized from a Unix-socket text handler to
// a TCP binary-frame handler: each test supplies exactly the byte
// sequence its scenario needs the "server" to produce.
func startMockControlServer(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create mock control server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()

	return listener.Addr().String()
}

// startMockMonitorServer is identical in shape to startMockControlServer
// but named separately to keep monitor-channel tests self-descriptive.
func startMockMonitorServer(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()
	return startMockControlServer(t, serve)
}
