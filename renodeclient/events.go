package renodeclient

import "sync"

// eventCallback receives a demultiplexed event frame's event command byte
// and raw payload. Implementations must be short and reentrant-safe: they
// are invoked while the registry's lock is held, during both the
// synchronous receive loop and the event pump, so they must not call
// register or unregister on the same registry.
type eventCallback func(cmd ApiCommand, data []byte)

// eventRegistry is a thread-safe mapping from server event descriptor to
// a typed callback. spec.md §9 explicitly moves this off a process-global
// singleton: the wire still allocates descriptors, just from a registry
// owned by one ClientSession rather than a package-level pool.
type eventRegistry struct {
	mu       sync.Mutex
	nextID   uint32
	handlers map[uint32]eventCallback
}

func newEventRegistry() *eventRegistry {
	return &eventRegistry{handlers: make(map[uint32]eventCallback)}
}

// register allocates a new event descriptor bound to cb and returns it.
// IDs are monotonic and never reused within the registry's lifetime;
// overflow past 2^32 values is not handled, matching the documented
// practical limit.
func (r *eventRegistry) register(cb eventCallback) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.handlers[id] = cb
	return id
}

// unregister removes a callback. Descriptors are never unregistered
// implicitly; the caller must invoke this to stop being eligible for
// dispatch.
func (r *eventRegistry) unregister(ed uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, ed)
}

// invoke dispatches data to the callback registered for ed, if any. It
// reports whether a handler was found and invoked. The callback runs
// with r.mu held.
func (r *eventRegistry) invoke(ed uint32, cmd ApiCommand, data []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.handlers[ed]
	if !ok {
		return false
	}
	cb(cmd, data)
	return true
}
