package main

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"
)

func TestDispatchDotCommandQuitStopsLoop(t *testing.T) {
	s := &session{}
	if dispatchDotCommand(s, ".quit") {
		t.Fatal(".quit must return false")
	}
}

func TestDispatchDotCommandUnknownKeepsLooping(t *testing.T) {
	s := &session{}
	if !dispatchDotCommand(s, ".frobnicate") {
		t.Fatal("an unknown dot-command must not stop the REPL")
	}
}

func TestDispatchDotCommandHelpKeepsLooping(t *testing.T) {
	s := &session{}
	if !dispatchDotCommand(s, ".help") {
		t.Fatal(".help must not stop the REPL")
	}
	if !dispatchDotCommand(s, ".help quit") {
		t.Fatal(".help <topic> must not stop the REPL")
	}
}

// startControlListener runs a minimal control-channel server: it accepts
// the handshake, then replies to a single GET_MACHINE request with a
// fixed descriptor.
func startControlListener(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		countBuf := make([]byte, 2)
		if _, err := io.ReadFull(conn, countBuf); err != nil {
			return
		}
		count := int(binary.LittleEndian.Uint16(countBuf))
		io.ReadFull(conn, make([]byte, count*2))
		conn.Write([]byte{0x05})

		head := make([]byte, 7)
		if _, err := io.ReadFull(conn, head); err != nil {
			return
		}
		size := binary.LittleEndian.Uint32(head[3:7])
		io.ReadFull(conn, make([]byte, size))

		resp := []byte{3, head[2]}
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, 4)
		resp = append(resp, lenBuf...)
		descBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(descBuf, 7)
		resp = append(resp, descBuf...)
		conn.Write(resp)
	}()

	return listener.Addr().String()
}

func startMonitorListener(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-time.After(500 * time.Millisecond) // keep the connection open for the test's duration
	}()

	return listener.Addr().String()
}

func TestDoConnectAndDoGetMachine(t *testing.T) {
	controlAddr := startControlListener(t)
	monitorAddr := startMonitorListener(t)

	s := &session{}
	doConnect(s, []string{controlAddr, monitorAddr})
	if !s.connected() {
		t.Fatal("doConnect did not establish a control connection")
	}
	t.Cleanup(func() { doDisconnect(s) })

	doGetMachine(s, []string{"stm32-machine"})
	if s.machine == nil {
		t.Fatal("doGetMachine did not attach a machine")
	}
	if s.machine.Descriptor() != 7 {
		t.Fatalf("Descriptor() = %d, want 7", s.machine.Descriptor())
	}
}

func TestDoConnectRejectsWrongArgCount(t *testing.T) {
	s := &session{}
	doConnect(s, []string{"only-one-arg"})
	if s.connected() {
		t.Fatal("doConnect with the wrong argument count must not connect")
	}
}
