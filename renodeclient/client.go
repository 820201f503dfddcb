package renodeclient

import (
	"context"
	"net"
	"sync"
	"time"
)

// DefaultConnectTimeout is the default timeout used by Connect when the
// caller does not supply a context deadline of its own.
const DefaultConnectTimeout = 15 * time.Second

// Client owns the control socket of one connection to a Renode external
// control endpoint. It serializes all command exchanges under a single
// mutex, demultiplexes asynchronous event frames from synchronous
// responses, and caches MachineFacade instances by name.
//
// A Client is safe for concurrent use from multiple goroutines, mirroring
// the teacher's atticprotocol.Client: every public method that touches the
// socket or session state takes the same lock.
type Client struct {
	mu        sync.Mutex
	conn      net.Conn
	reader    *frameReader
	connected bool

	events *eventRegistry

	// machines caches MachineFacade instances by name so repeated
	// getMachine calls for the same name return the same object while the
	// session is connected. Entries are discarded wholesale on Disconnect;
	// Go has no ambient weak reference to lean on, so this is a plain map
	// guarded by mu rather than a weak-reference cache (see DESIGN.md).
	machines map[string]*MachineFacade
}

// NewClient creates an unconnected Client.
func NewClient() *Client {
	return &Client{events: newEventRegistry()}
}

// Connect dials the control channel and performs no protocol exchange.
// Use Handshake afterwards to complete the bring-up sequence described in
// spec.md §4.5.
func (c *Client) Connect(ctx context.Context, address string) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConnectTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return NewConnectionError("failed to connect", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.reader = newFrameReader(conn)
	c.connected = true
	c.machines = make(map[string]*MachineFacade)
	c.mu.Unlock()
	return nil
}

// IsConnected reports whether the session currently owns a live socket.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnect closes the control socket idempotently. Subsequent
// operations fail with ErrNotConnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return
	}
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.reader = nil
	c.machines = nil
}

// closeLocked tears the connection down in response to a fatal protocol
// desync. Caller must hold mu.
func (c *Client) closeLocked() {
	if !c.connected {
		return
	}
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.reader = nil
	c.machines = nil
}

// cachedMachine returns the cached facade for name, if the session still
// has one. Caller must hold mu.
func (c *Client) cachedMachine(name string) (*MachineFacade, bool) {
	if c.machines == nil {
		return nil, false
	}
	m, ok := c.machines[name]
	return m, ok
}

// cacheMachine stores a facade for name. Caller must hold mu.
func (c *Client) cacheMachine(name string, m *MachineFacade) {
	if c.machines == nil {
		c.machines = make(map[string]*MachineFacade)
	}
	c.machines[name] = m
}
