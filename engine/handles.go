package engine

import "fmt"

// Registration is a surface registered with a session.
type Registration[S any] struct {
	Surface S
	Params  RegisterParams
	Mapped  MappedResource
}

// BufferSlot holds an engine's MV buffer of type B with its lock state.
type BufferSlot[B any] struct {
	Buf    B
	Ready  bool
	Locked bool
}

// Handles is the bookkeeping behind a Session: lifecycle flags plus the
// tables of registered surfaces, mapped inputs and MV buffers.
//
// Handles is not safe for concurrent use; sessions guard it with their own
// lock.
type Handles[S, B any] struct {
	initialized bool
	destroyed   bool
	next        uint64
	registered  map[RegisteredResource]*Registration[S]
	mapped      map[MappedResource]RegisteredResource
	buffers     map[MVBuffer]*BufferSlot[B]
}

// NewHandles returns an empty table for an uninitialized session.
func NewHandles[S, B any]() *Handles[S, B] {
	return &Handles[S, B]{
		registered: make(map[RegisteredResource]*Registration[S]),
		mapped:     make(map[MappedResource]RegisteredResource),
		buffers:    make(map[MVBuffer]*BufferSlot[B]),
	}
}

func (h *Handles[S, B]) issue() uint64 {
	h.next++
	return h.next
}

// Alive returns ErrDestroyed once the session is destroyed.
func (h *Handles[S, B]) Alive() error {
	if h.destroyed {
		return ErrDestroyed
	}
	return nil
}

// Usable reports whether the session accepts work.
func (h *Handles[S, B]) Usable() error {
	if h.destroyed {
		return ErrDestroyed
	}
	if !h.initialized {
		return ErrNotInitialized
	}
	return nil
}

// CanInitialize reports whether Initialize may run.
func (h *Handles[S, B]) CanInitialize() error {
	if h.destroyed {
		return ErrDestroyed
	}
	if h.initialized {
		return ErrAlreadyInitialized
	}
	return nil
}

// MarkInitialized records a successful Initialize.
func (h *Handles[S, B]) MarkInitialized() { h.initialized = true }

// Register adds a surface and returns its handle.
func (h *Handles[S, B]) Register(surf S, p RegisterParams) RegisteredResource {
	r := RegisteredResource(h.issue())
	h.registered[r] = &Registration[S]{Surface: surf, Params: p}
	return r
}

// Unregister drops a registered surface. Mapped surfaces are refused.
func (h *Handles[S, B]) Unregister(r RegisteredResource) error {
	if err := h.Alive(); err != nil {
		return err
	}
	reg, ok := h.registered[r]
	if !ok {
		return fmt.Errorf("%w: registered resource %d", ErrInvalidHandle, r)
	}
	if reg.Mapped != 0 {
		return fmt.Errorf("%w: registered resource %d", ErrResourceMapped, r)
	}
	delete(h.registered, r)
	return nil
}

// Map maps a registered surface as an estimation input.
func (h *Handles[S, B]) Map(r RegisteredResource) (MappedResource, error) {
	if err := h.Usable(); err != nil {
		return 0, err
	}
	reg, ok := h.registered[r]
	if !ok {
		return 0, fmt.Errorf("%w: registered resource %d", ErrInvalidHandle, r)
	}
	if reg.Mapped != 0 {
		return 0, fmt.Errorf("%w: registered resource %d", ErrAlreadyMapped, r)
	}
	m := MappedResource(h.issue())
	reg.Mapped = m
	h.mapped[m] = r
	return m, nil
}

// Unmap releases a mapping made by Map.
func (h *Handles[S, B]) Unmap(m MappedResource) error {
	if err := h.Alive(); err != nil {
		return err
	}
	r, ok := h.mapped[m]
	if !ok {
		return fmt.Errorf("%w: mapped resource %d", ErrInvalidHandle, m)
	}
	h.registered[r].Mapped = 0
	delete(h.mapped, m)
	return nil
}

// Input resolves a mapped handle to its registration.
func (h *Handles[S, B]) Input(m MappedResource) (*Registration[S], error) {
	r, ok := h.mapped[m]
	if !ok {
		return nil, fmt.Errorf("%w: mapped resource %d", ErrInvalidHandle, m)
	}
	return h.registered[r], nil
}

// AddBuffer stores buf and returns its handle.
func (h *Handles[S, B]) AddBuffer(buf B) MVBuffer {
	b := MVBuffer(h.issue())
	h.buffers[b] = &BufferSlot[B]{Buf: buf}
	return b
}

// Writable returns the slot for b if it exists and is not locked.
func (h *Handles[S, B]) Writable(b MVBuffer) (*BufferSlot[B], error) {
	slot, ok := h.buffers[b]
	if !ok {
		return nil, fmt.Errorf("%w: MV buffer %d", ErrInvalidHandle, b)
	}
	if slot.Locked {
		return nil, fmt.Errorf("%w: MV buffer %d", ErrBufferLocked, b)
	}
	return slot, nil
}

// Lockable returns the slot for b if it holds finished output and is not
// already locked. The caller sets Locked once the data is readable.
func (h *Handles[S, B]) Lockable(b MVBuffer) (*BufferSlot[B], error) {
	if err := h.Usable(); err != nil {
		return nil, err
	}
	slot, err := h.Writable(b)
	if err != nil {
		return nil, err
	}
	if !slot.Ready {
		return nil, fmt.Errorf("%w: MV buffer %d", ErrNotReady, b)
	}
	return slot, nil
}

// Unlock clears the lock taken after Lockable.
func (h *Handles[S, B]) Unlock(b MVBuffer) error {
	if err := h.Alive(); err != nil {
		return err
	}
	slot, ok := h.buffers[b]
	if !ok {
		return fmt.Errorf("%w: MV buffer %d", ErrInvalidHandle, b)
	}
	if !slot.Locked {
		return fmt.Errorf("%w: MV buffer %d", ErrBufferNotLocked, b)
	}
	slot.Locked = false
	return nil
}

// RemoveBuffer drops an unlocked buffer and returns it for release.
func (h *Handles[S, B]) RemoveBuffer(b MVBuffer) (B, error) {
	var zero B
	if err := h.Alive(); err != nil {
		return zero, err
	}
	slot, err := h.Writable(b)
	if err != nil {
		return zero, err
	}
	delete(h.buffers, b)
	return slot.Buf, nil
}

// Destroy marks the session destroyed and drops every handle. It returns
// the buffers that were still allocated so the engine can release them.
// The error is ErrDestroyed on a second call, or wraps ErrResourcesLive
// when anything was left registered, mapped or allocated.
func (h *Handles[S, B]) Destroy() ([]B, error) {
	if h.destroyed {
		return nil, ErrDestroyed
	}
	h.destroyed = true

	nr, nm, nb := len(h.registered), len(h.mapped), len(h.buffers)
	left := make([]B, 0, nb)
	for _, slot := range h.buffers {
		left = append(left, slot.Buf)
	}
	h.registered, h.mapped, h.buffers = nil, nil, nil
	if nr > 0 || nm > 0 || nb > 0 {
		return left, fmt.Errorf("%w: %d registered, %d mapped, %d MV buffers",
			ErrResourcesLive, nr, nm, nb)
	}
	return left, nil
}
