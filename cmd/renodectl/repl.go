package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/renode-extcontrol/go-client/renodeclient"
)

// session holds the REPL's mutable state across dot-commands: the control
// client, its monitor sibling once attached, and the active machine.
type session struct {
	client  *renodeclient.Client
	monitor *renodeclient.MonitorSession
	machine *renodeclient.MachineFacade
}

func (s *session) connected() bool {
	return s.client != nil && s.client.IsConnected()
}

// runREPL drives the interactive loop: read a line, dispatch either a
// dot-command or a raw monitor verb, print the result, repeat until EOF.
func runREPL() {
	editor := NewLineEditor()
	defer editor.Close()

	s := &session{}
	defer func() {
		if s.connected() {
			s.client.Disconnect()
		}
		if s.monitor != nil {
			s.monitor.Disconnect()
		}
	}()

	for {
		line, err := editor.GetLine(promptFor(s))
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if !dispatchDotCommand(s, line) {
				return
			}
			continue
		}

		runMonitorVerb(s, line)
	}
}

func promptFor(s *session) string {
	if s.machine != nil {
		return fmt.Sprintf("renodectl(%s)> ", s.machine.Name())
	}
	if s.connected() {
		return "renodectl> "
	}
	return "renodectl (disconnected)> "
}

// dispatchDotCommand handles one ".command" line. It returns false when
// the REPL should exit.
func dispatchDotCommand(s *session, line string) bool {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case ".quit", ".exit":
		return false
	case ".help":
		if len(args) == 0 {
			printHelpOverview()
		} else {
			printHelpTopic(args[0])
		}
	case ".connect":
		doConnect(s, args)
	case ".machine":
		doGetMachine(s, args)
	case ".disconnect":
		doDisconnect(s)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (try .help)\n", cmd)
	}
	return true
}

func doConnect(s *session, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: .connect <control host:port> <monitor host:port>")
		return
	}
	if s.connected() {
		fmt.Fprintln(os.Stderr, "already connected; .disconnect first")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), renodeclient.DefaultConnectTimeout)
	defer cancel()

	client := renodeclient.NewClient()
	if err := client.Connect(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return
	}
	if err := client.Handshake(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "handshake: %v\n", err)
		client.Disconnect()
		return
	}

	monitor := renodeclient.NewMonitorSession()
	if err := monitor.Connect(ctx, args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "monitor connect: %v\n", err)
		client.Disconnect()
		return
	}

	s.client = client
	s.monitor = monitor
	fmt.Println("connected")
}

func doGetMachine(s *session, args []string) {
	if !s.connected() {
		fmt.Fprintln(os.Stderr, "not connected; .connect first")
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: .machine <name>")
		return
	}

	m, err := s.client.GetMachine(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "machine: %v\n", err)
		return
	}
	m.AttachMonitor(s.monitor)
	s.machine = m
	fmt.Printf("attached to %s (descriptor %d)\n", m.Name(), m.Descriptor())
}

func doDisconnect(s *session) {
	if s.connected() {
		s.client.Disconnect()
	}
	if s.monitor != nil {
		s.monitor.Disconnect()
	}
	s.client = nil
	s.monitor = nil
	s.machine = nil
	fmt.Println("disconnected")
}

// runMonitorVerb sends line as-is through the monitor channel, since the
// monitor's own vocabulary (pause, start, peripherals, sysbus ..., etc.)
// is open-ended and not worth re-encoding as dot-commands.
func runMonitorVerb(s *session, line string) {
	if s.monitor == nil {
		fmt.Fprintln(os.Stderr, "not connected; .connect first")
		return
	}
	s.monitor.SetTimeout(30 * time.Second)
	out, err := s.monitor.Execute(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if out != "" {
		fmt.Println(out)
	}
}
