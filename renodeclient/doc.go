// Package renodeclient implements a client for a remote emulator's
// "external control" protocol: a length-framed binary TCP connection that
// multiplexes synchronous request/response command exchanges with
// server-initiated asynchronous event frames, plus a companion text-line
// monitor channel for free-form administrative commands.
//
// # Basic Usage
//
// Connect, handshake, and fetch a machine:
//
//	client := renodeclient.NewClient()
//	if err := client.Connect(ctx, "127.0.0.1:5555"); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect()
//	if err := client.Handshake(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	machine, err := client.GetMachine("stm32-machine")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Monitor Channel
//
// Lifecycle verbs (Pause, Resume, Reset, LoadConfiguration) and discovery
// (ListPeripherals) run over a separate monitor session, attached to the
// facade after connecting it:
//
//	monitor := renodeclient.NewMonitorSession()
//	if err := monitor.Connect(ctx, "127.0.0.1:5556"); err != nil {
//	    log.Fatal(err)
//	}
//	machine.AttachMonitor(monitor)
//	machine.Pause()
//
// # Peripherals
//
// GPIO, ADC, and SysBus peripherals share one registration pattern:
//
//	gpio, err := machine.GetGpio("sysbus.gpioPortA")
//	state, err := gpio.GetState(3)
//
// # Events
//
// Event callbacks run on whichever goroutine drains them — either
// Client.Exchange (when an event interleaves with a synchronous call) or
// Client.PumpOnce (when nothing else is in flight). They must be short
// and reentrant-safe.
//
// # Thread Safety
//
// Client and MonitorSession are safe for concurrent use. Package queue
// provides a task-boundary wrapper for UIs that must never block on
// socket I/O.
package renodeclient
