package engine

import (
	"errors"
	"testing"
)

func newTestHandles(t *testing.T) *Handles[string, []byte] {
	t.Helper()
	h := NewHandles[string, []byte]()
	if err := h.CanInitialize(); err != nil {
		t.Fatalf("CanInitialize() = %v, want nil", err)
	}
	h.MarkInitialized()
	return h
}

func TestHandles_Lifecycle(t *testing.T) {
	h := NewHandles[string, []byte]()
	if err := h.Usable(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Usable() before init = %v, want ErrNotInitialized", err)
	}
	if _, err := h.Map(1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Map before init = %v, want ErrNotInitialized", err)
	}
	h.MarkInitialized()
	if err := h.CanInitialize(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("CanInitialize() twice = %v, want ErrAlreadyInitialized", err)
	}
	if _, err := h.Destroy(); err != nil {
		t.Errorf("Destroy() empty = %v, want nil", err)
	}
	if _, err := h.Destroy(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Destroy() twice = %v, want ErrDestroyed", err)
	}
	if err := h.Usable(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Usable() after destroy = %v, want ErrDestroyed", err)
	}
}

func TestHandles_MapUnmap(t *testing.T) {
	h := newTestHandles(t)
	r := h.Register("ref", RegisterParams{Width: 16, Height: 16})
	if r == 0 {
		t.Fatal("Register returned the zero handle")
	}

	m, err := h.Map(r)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if _, err := h.Map(r); !errors.Is(err, ErrAlreadyMapped) {
		t.Errorf("Map twice = %v, want ErrAlreadyMapped", err)
	}
	if err := h.Unregister(r); !errors.Is(err, ErrResourceMapped) {
		t.Errorf("Unregister while mapped = %v, want ErrResourceMapped", err)
	}

	reg, err := h.Input(m)
	if err != nil {
		t.Fatalf("Input: %v", err)
	}
	if reg.Surface != "ref" || reg.Params.Width != 16 || reg.Mapped != m {
		t.Errorf("Input(%d) = %+v", m, reg)
	}

	if err := h.Unmap(m); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if err := h.Unmap(m); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Unmap twice = %v, want ErrInvalidHandle", err)
	}
	if _, err := h.Input(m); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Input after unmap = %v, want ErrInvalidHandle", err)
	}
	if err := h.Unregister(r); err != nil {
		t.Errorf("Unregister = %v, want nil", err)
	}
	if err := h.Unregister(r); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Unregister twice = %v, want ErrInvalidHandle", err)
	}
}

func TestHandles_BufferLocking(t *testing.T) {
	h := newTestHandles(t)
	b := h.AddBuffer([]byte{1, 2, 3})

	if _, err := h.Lockable(b); !errors.Is(err, ErrNotReady) {
		t.Errorf("Lockable before run = %v, want ErrNotReady", err)
	}
	slot, err := h.Writable(b)
	if err != nil {
		t.Fatalf("Writable: %v", err)
	}
	slot.Ready = true

	slot, err = h.Lockable(b)
	if err != nil {
		t.Fatalf("Lockable: %v", err)
	}
	slot.Locked = true

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"Lockable", func() error { _, err := h.Lockable(b); return err }, ErrBufferLocked},
		{"Writable", func() error { _, err := h.Writable(b); return err }, ErrBufferLocked},
		{"RemoveBuffer", func() error { _, err := h.RemoveBuffer(b); return err }, ErrBufferLocked},
		{"Unlock unknown", func() error { return h.Unlock(b + 100) }, ErrInvalidHandle},
	}
	for _, tt := range tests {
		if err := tt.call(); !errors.Is(err, tt.want) {
			t.Errorf("%s on locked buffer = %v, want %v", tt.name, err, tt.want)
		}
	}

	if err := h.Unlock(b); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := h.Unlock(b); !errors.Is(err, ErrBufferNotLocked) {
		t.Errorf("Unlock twice = %v, want ErrBufferNotLocked", err)
	}
	buf, err := h.RemoveBuffer(b)
	if err != nil {
		t.Fatalf("RemoveBuffer: %v", err)
	}
	if len(buf) != 3 {
		t.Errorf("RemoveBuffer returned %d bytes, want 3", len(buf))
	}
}

func TestHandles_DestroyReportsLive(t *testing.T) {
	h := newTestHandles(t)
	r := h.Register("in", RegisterParams{})
	if _, err := h.Map(r); err != nil {
		t.Fatalf("Map: %v", err)
	}
	h.AddBuffer([]byte{9})

	left, err := h.Destroy()
	if !errors.Is(err, ErrResourcesLive) {
		t.Errorf("Destroy() = %v, want ErrResourcesLive", err)
	}
	if len(left) != 1 || left[0][0] != 9 {
		t.Errorf("Destroy() leftover = %v, want [[9]]", left)
	}
	if err := h.Unregister(r); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Unregister after destroy = %v, want ErrDestroyed", err)
	}
}

func TestHandles_DistinctHandles(t *testing.T) {
	h := newTestHandles(t)
	seen := make(map[uint64]bool)
	for range 3 {
		r := h.Register("s", RegisterParams{})
		m, err := h.Map(r)
		if err != nil {
			t.Fatalf("Map: %v", err)
		}
		b := h.AddBuffer(nil)
		for _, v := range []uint64{uint64(r), uint64(m), uint64(b)} {
			if v == 0 || seen[v] {
				t.Fatalf("handle %d is zero or reused", v)
			}
			seen[v] = true
		}
	}
}
