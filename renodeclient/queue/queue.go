// Package queue provides the single-producer task boundary between an
// external UI thread and a renodeclient session. Commands posted from
// the UI never block the caller; results and asynchronous events are
// delivered as discrete UIEvent values on a single outbound channel,
// matching spec.md §4.9 and §5.
package queue

import (
	"time"

	"github.com/renode-extcontrol/go-client/renodeclient"
)

// UIEventKind identifies the shape of a UIEvent.
type UIEventKind int

const (
	Connected UIEventKind = iota
	ConnectionFailed
	Disconnected
	SimulationTimeUpdated
	RunForCompleted
	RunForFailed
	Paused
	Resumed
	ResetDone
	OperationFailed
	GpioStatesUpdated
	GpioPinChanged
	AdcDataUpdated
	PeripheralsDiscovered
)

// GpioPinState pairs a pin number with its logical level, used in
// GpioStatesUpdated and GpioPinChanged payloads.
type GpioPinState struct {
	Pin   int32
	State renodeclient.GpioState
}

// AdcChannelValue pairs a channel number with its converted reading, used
// in AdcDataUpdated payloads.
type AdcChannelValue struct {
	Channel int32
	Value   float64
}

// UIEvent is one discrete notification posted back to the UI-facing
// channel. Only the fields relevant to Kind are populated.
type UIEvent struct {
	Kind UIEventKind

	MachineName  string
	MachineID    int32
	Message      string
	Microseconds uint64

	PeripheralPath  string
	GpioStates      []GpioPinState
	GpioPin         GpioPinState
	AdcChannels     []AdcChannelValue
	AdcChannelCount uint32

	Peripherals []renodeclient.DiscoveredPeripheral
}

// Task is a unit of work posted by the UI. It runs on the worker
// goroutine with exclusive access to client, and must not block for long
// periods or perform UI work directly — post a UIEvent through events
// instead.
type Task func(client *renodeclient.Client, events chan<- UIEvent)

// Worker hosts one renodeclient.Client (and the facades/peripherals built
// on it) on a dedicated goroutine. The UI posts Tasks through Post and
// receives UIEvents through Events; Post never blocks past handing the
// task to an unbounded-enough buffer, and commands run strictly in the
// FIFO order they were posted.
type Worker struct {
	client  *renodeclient.Client
	tasks   chan Task
	events  chan UIEvent
	done    chan struct{}
	pumpGap time.Duration
}

// NewWorker creates a Worker around client. pumpGap controls how often
// the worker invokes PumpOnce while idle between posted tasks; pass a
// small value (tens of milliseconds) for responsive event delivery.
func NewWorker(client *renodeclient.Client, pumpGap time.Duration) *Worker {
	return &Worker{
		client:  client,
		tasks:   make(chan Task, 64),
		events:  make(chan UIEvent, 256),
		done:    make(chan struct{}),
		pumpGap: pumpGap,
	}
}

// Events returns the channel the UI should drain for discrete
// notifications, including events re-posted from the client's
// asynchronous event pump.
func (w *Worker) Events() <-chan UIEvent { return w.events }

// Post enqueues a task to run on the worker goroutine. It never blocks
// the caller past the channel send (the task queue is generously
// buffered); if the queue is somehow full, Post blocks rather than
// dropping work, since dropping a command silently would violate the
// FIFO delivery guarantee.
func (w *Worker) Post(t Task) {
	w.tasks <- t
}

// Run drains posted tasks in FIFO order, pumping the client's event
// registry between tasks, until Stop is called. It is meant to be run on
// its own goroutine: `go worker.Run()`.
func (w *Worker) Run() {
	ticker := time.NewTicker(w.pumpGap)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case task := <-w.tasks:
			task(w.client, w.events)
		case <-ticker.C:
			if w.client.IsConnected() {
				w.client.PumpOnce(w.pumpGap)
			}
		}
	}
}

// Stop ends the worker's Run loop. It does not disconnect the client;
// callers that want a clean shutdown should post a task that calls
// client.Disconnect() before calling Stop.
func (w *Worker) Stop() {
	close(w.done)
}
