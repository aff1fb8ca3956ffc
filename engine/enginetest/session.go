package enginetest

import (
	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/vector"
)

type session struct {
	e      *Engine
	h      uint64
	params engine.InitializeParams
	out    map[engine.MVBuffer][]byte
}

func (s *session) Initialize(p engine.InitializeParams) error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallInitialize); err != nil {
		return err
	}
	if err := engine.CheckInitialize(p, engine.DefaultLimits()); err != nil {
		return err
	}
	s.params = p
	s.e.init = p
	return nil
}

func (s *session) RegisterResource(p engine.RegisterParams) (engine.RegisteredResource, error) {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallRegisterResource); err != nil {
		return 0, err
	}
	if err := engine.CheckRegister(p, s.params, engine.DefaultLimits()); err != nil {
		return 0, err
	}
	s.e.regs = append(s.e.regs, p)
	return engine.RegisteredResource(s.e.acquire("registration")), nil
}

func (s *session) UnregisterResource(r engine.RegisteredResource) error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallUnregisterResource); err != nil {
		return err
	}
	return s.e.release(uint64(r), "registration")
}

func (s *session) MapInputResource(r engine.RegisteredResource) (engine.MappedResource, error) {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallMapInputResource); err != nil {
		return 0, err
	}
	if s.e.live[uint64(r)] != "registration" {
		return 0, engine.ErrInvalidHandle
	}
	return engine.MappedResource(s.e.acquire("mapping")), nil
}

func (s *session) UnmapInputResource(m engine.MappedResource) error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallUnmapInputResource); err != nil {
		return err
	}
	return s.e.release(uint64(m), "mapping")
}

func (s *session) CreateMVBuffer() (engine.MVBuffer, error) {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallCreateMVBuffer); err != nil {
		return 0, err
	}
	return engine.MVBuffer(s.e.acquire("mv buffer")), nil
}

func (s *session) DestroyMVBuffer(b engine.MVBuffer) error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallDestroyMVBuffer); err != nil {
		return err
	}
	delete(s.out, b)
	return s.e.release(uint64(b), "mv buffer")
}

func (s *session) RunMotionEstimationOnly(p engine.MEOnlyParams) error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallRun); err != nil {
		return err
	}
	s.e.meOnly = append(s.e.meOnly, p)
	for _, h := range []uint64{uint64(p.Input), uint64(p.Reference)} {
		if s.e.live[h] != "mapping" {
			return engine.ErrInvalidHandle
		}
	}
	if s.e.live[uint64(p.MVBuffer)] != "mv buffer" {
		return engine.ErrInvalidHandle
	}

	cols, rows, err := vector.Grid(p.InputWidth, p.InputHeight)
	if err != nil {
		return err
	}
	data := make([]byte, cols*rows*vector.RecordSize)
	rec := vector.Record{
		MV:            [vector.SubBlocks]vector.MotionVector{s.e.Vector, s.e.Vector, s.e.Vector, s.e.Vector},
		MBType:        vector.MBTypeInter,
		PartitionType: vector.Partition8x8,
		Cost:          s.e.Cost,
	}
	for i := range cols * rows {
		if err := vector.PutRecord(data, i, rec); err != nil {
			return err
		}
	}
	if s.out == nil {
		s.out = make(map[engine.MVBuffer][]byte)
	}
	s.out[p.MVBuffer] = data
	return nil
}

func (s *session) LockBitstream(b engine.MVBuffer, p engine.LockParams) (engine.LockedBitstream, error) {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallLockBitstream); err != nil {
		return engine.LockedBitstream{}, err
	}
	s.e.lockOps = append(s.e.lockOps, p)
	data, ok := s.out[b]
	if !ok {
		return engine.LockedBitstream{}, engine.ErrNotReady
	}
	s.e.acquire("lock")
	return engine.LockedBitstream{Data: data[:max(len(data)-s.e.Truncate, 0)]}, nil
}

func (s *session) UnlockBitstream(engine.MVBuffer) error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallUnlockBitstream); err != nil {
		return err
	}
	for h, k := range s.e.live {
		if k == "lock" {
			delete(s.e.live, h)
			return nil
		}
	}
	return engine.ErrBufferNotLocked
}

func (s *session) Destroy() error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.record(CallDestroy); err != nil {
		return err
	}
	return s.e.release(s.h, "session")
}
