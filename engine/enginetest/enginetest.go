// Package enginetest provides a recording in-memory engine for tests.
//
// The fake implements the full engine contract on the host, records every
// call by method name, tracks live resources, and fails any named call on
// request. Estimation writes a configurable constant vector into every
// sub-block.
package enginetest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/vector"
)

// Name is the engine name reported by the fake.
const Name = "fake"

// Call names recorded by the fake, one per contract method.
const (
	CallOpenDevice          = "OpenDevice"
	CallMaxSupportedVersion = "MaxSupportedVersion"
	CallAllocPitch          = "AllocPitch"
	CallCopyToSurface       = "CopyToSurface"
	CallFree                = "Free"
	CallOpenSession         = "OpenSession"
	CallClose               = "Close"
	CallInitialize          = "Initialize"
	CallRegisterResource    = "RegisterResource"
	CallUnregisterResource  = "UnregisterResource"
	CallMapInputResource    = "MapInputResource"
	CallUnmapInputResource  = "UnmapInputResource"
	CallCreateMVBuffer      = "CreateMVBuffer"
	CallDestroyMVBuffer     = "DestroyMVBuffer"
	CallRun                 = "RunMotionEstimationOnly"
	CallLockBitstream       = "LockBitstream"
	CallUnlockBitstream     = "UnlockBitstream"
	CallDestroy             = "Destroy"
)

// Engine is a recording fake. Configure the exported fields before use.
type Engine struct {
	// Version is reported by MaxSupportedVersion.
	Version engine.APIVersion

	// DeviceName is reported by Device.Name.
	DeviceName string

	// Vector is written to every sub-block by RunMotionEstimationOnly.
	Vector vector.MotionVector

	// Cost is written as the mbCost of every macroblock.
	Cost uint32

	// Truncate drops this many bytes from the end of locked bitstreams.
	Truncate int

	mu      sync.Mutex
	calls   []string
	faults  map[string]error
	next    uint64
	live    map[uint64]string
	init    engine.InitializeParams
	regs    []engine.RegisterParams
	copies  [][]byte
	meOnly  []engine.MEOnlyParams
	lockOps []engine.LockParams
}

var _ engine.Engine = (*Engine)(nil)

// New returns a fake reporting engine.RequiredVersion and zero motion.
func New() *Engine {
	return &Engine{
		Version:    engine.RequiredVersion,
		DeviceName: "fake device",
		faults:     make(map[string]error),
		live:       make(map[uint64]string),
	}
}

// FailOn makes every later call named call return err.
func (e *Engine) FailOn(call string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[call] = err
}

// Calls returns the recorded call names in order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// Count returns how many times call was made, failed calls included.
func (e *Engine) Count(call string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c == call {
			n++
		}
	}
	return n
}

// Live returns the kinds of resources not yet released, sorted.
func (e *Engine) Live() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	kinds := make([]string, 0, len(e.live))
	for _, k := range e.live {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// InitializeParams returns the parameters of the last Initialize call.
func (e *Engine) InitializeParams() engine.InitializeParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.init
}

// RegisterParams returns the parameters of every RegisterResource call.
func (e *Engine) RegisterParams() []engine.RegisterParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.regs)
}

// Copies returns the rows written by each CopyToSurface call, packed.
func (e *Engine) Copies() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.copies)
}

// MEOnlyParams returns the parameters of every estimation run.
func (e *Engine) MEOnlyParams() []engine.MEOnlyParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.meOnly)
}

// LockParams returns the parameters of every LockBitstream call.
func (e *Engine) LockParams() []engine.LockParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.lockOps)
}

// record logs call and returns its injected fault.
// Caller must hold e.mu.
func (e *Engine) record(call string) error {
	e.calls = append(e.calls, call)
	if err := e.faults[call]; err != nil {
		return fmt.Errorf("%s: %w", call, err)
	}
	return nil
}

// acquire issues a live handle of the given kind.
// Caller must hold e.mu.
func (e *Engine) acquire(kind string) uint64 {
	e.next++
	e.live[e.next] = kind
	return e.next
}

// release retires a live handle of the given kind.
// Caller must hold e.mu.
func (e *Engine) release(h uint64, kind string) error {
	if k, ok := e.live[h]; !ok || k != kind {
		return fmt.Errorf("%w: %s %d", engine.ErrInvalidHandle, kind, h)
	}
	delete(e.live, h)
	return nil
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return Name }

// OpenDevice implements engine.Engine.
func (e *Engine) OpenDevice(ordinal int) (engine.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record(CallOpenDevice); err != nil {
		return nil, err
	}
	if ordinal != 0 {
		return nil, engine.ErrNoDevice
	}
	return &device{e: e, h: e.acquire("device")}, nil
}
