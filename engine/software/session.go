package software

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/vector"
)

// session implements engine.Session on the host. MV buffers are plain
// byte slices.
type session struct {
	dev *device

	mu     sync.Mutex
	params engine.InitializeParams
	h      *engine.Handles[*surface, []byte]
}

var _ engine.Session = (*session)(nil)

func newSession(d *device) *session {
	return &session{dev: d, h: engine.NewHandles[*surface, []byte]()}
}

func (s *session) Initialize(p engine.InitializeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.CanInitialize(); err != nil {
		return err
	}
	if err := engine.CheckInitialize(p, s.dev.cfg.Limits); err != nil {
		return err
	}
	s.params = p
	s.h.MarkInitialized()
	return nil
}

func (s *session) RegisterResource(p engine.RegisterParams) (engine.RegisteredResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.Usable(); err != nil {
		return 0, err
	}
	if err := engine.CheckRegister(p, s.params, s.dev.cfg.Limits); err != nil {
		return 0, err
	}
	surf, err := s.dev.surfaceData(p.Surface)
	if err != nil {
		return 0, err
	}
	return s.h.Register(surf, p), nil
}

func (s *session) UnregisterResource(r engine.RegisteredResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Unregister(r)
}

func (s *session) MapInputResource(r engine.RegisteredResource) (engine.MappedResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Map(r)
}

func (s *session) UnmapInputResource(m engine.MappedResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Unmap(m)
}

func (s *session) CreateMVBuffer() (engine.MVBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.Usable(); err != nil {
		return 0, err
	}
	size, err := vector.BufferSize(s.params.Width, s.params.Height)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", engine.ErrInvalidParam, err)
	}
	return s.h.AddBuffer(make([]byte, size)), nil
}

func (s *session) DestroyMVBuffer(b engine.MVBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.h.RemoveBuffer(b)
	return err
}

func (s *session) RunMotionEstimationOnly(p engine.MEOnlyParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.Usable(); err != nil {
		return err
	}
	in, err := s.h.Input(p.Input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	ref, err := s.h.Input(p.Reference)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	slot, err := s.h.Writable(p.MVBuffer)
	if err != nil {
		return err
	}
	if p.InputWidth != s.params.Width || p.InputHeight != s.params.Height {
		return fmt.Errorf("%w: input %dx%d, session %dx%d",
			engine.ErrInvalidParam, p.InputWidth, p.InputHeight, s.params.Width, s.params.Height)
	}

	refPlane := newLumaPlane(ref.Surface, ref.Params)
	inPlane := newLumaPlane(in.Surface, in.Params)
	search := searcher{
		ref:     refPlane,
		in:      inPlane,
		rng:     min(max(s.dev.cfg.SearchRange, 0), MaxSearchRange),
		workers: s.dev.cfg.Workers,
	}
	if err := search.run(slot.Buf); err != nil {
		return err
	}
	slot.Ready = true
	slogger().Debug("software: motion estimation done", "bytes", len(slot.Buf))
	return nil
}

func (s *session) LockBitstream(b engine.MVBuffer, p engine.LockParams) (engine.LockedBitstream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Estimation runs to completion inside RunMotionEstimationOnly, so a
	// buffer that is not ready has nothing pending to wait for.
	slot, err := s.h.Lockable(b)
	if err != nil {
		return engine.LockedBitstream{}, err
	}
	slot.Locked = true
	return engine.LockedBitstream{Data: slot.Buf}, nil
}

func (s *session) UnlockBitstream(b engine.MVBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Unlock(b)
}

// Destroy ends the session. Resources still registered, mapped or allocated
// are released and reported with ErrResourcesLive.
func (s *session) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.h.Destroy()
	if errors.Is(err, engine.ErrDestroyed) {
		return err
	}
	s.dev.sessionClosed()
	return err
}
