// Package estimate drives one motion-estimation-only session.
//
// An Orchestrator walks a fixed, one-directional state sequence:
//
//	Created → Initialized → SurfacesMapped → BufferAllocated →
//	EstimationRun → ResultRetrieved → TornDown
//
// Calls out of order fail with ErrInvalidState. Every acquisition pushes
// its release onto the caller's unwind stack; the session destroy step moves
// the orchestrator to TornDown.
package estimate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/unwind"
	"github.com/gogpu/mvfield/internal/vector"
)

var (
	// ErrInvalidState is returned for calls made out of sequence.
	ErrInvalidState = errors.New("estimate: invalid state")

	// ErrVersionTooOld is returned when the device's API version is below
	// engine.RequiredVersion.
	ErrVersionTooOld = errors.New("estimate: device API version too old")

	// ErrShortBitstream is returned when the locked buffer holds fewer bytes
	// than the frame's records need.
	ErrShortBitstream = errors.New("estimate: motion vector buffer too short")
)

// Session parameters used by every run.
const (
	Preset       = engine.PresetP5
	FrameRateNum = 30
	FrameRateDen = 1
)

// State is a step of the orchestrator lifecycle.
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateSurfacesMapped
	StateBufferAllocated
	StateEstimationRun
	StateResultRetrieved
	StateTornDown
)

var stateNames = [...]string{
	"Created", "Initialized", "SurfacesMapped", "BufferAllocated",
	"EstimationRun", "ResultRetrieved", "TornDown",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CheckVersion returns the device's maximum API version, failing with
// ErrVersionTooOld if it is below engine.RequiredVersion.
func CheckVersion(dev engine.Device) (engine.APIVersion, error) {
	v, err := dev.MaxSupportedVersion()
	if err != nil {
		return 0, fmt.Errorf("query API version: %w", err)
	}
	if v < engine.RequiredVersion {
		return v, fmt.Errorf("%w: device supports %v, need %v", ErrVersionTooOld, v, engine.RequiredVersion)
	}
	return v, nil
}

// Orchestrator owns the session of a single estimation.
type Orchestrator struct {
	dev    engine.Device
	stack  *unwind.Stack
	width  int
	height int
	log    *slog.Logger

	state  State
	sess   engine.Session
	ref    engine.MappedResource
	in     engine.MappedResource
	buf    engine.MVBuffer
	result []byte
}

// New returns an orchestrator in StateCreated for width x height frames.
func New(dev engine.Device, stack *unwind.Stack, width, height int) *Orchestrator {
	return &Orchestrator{
		dev: dev, stack: stack, width: width, height: height,
		log: slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger for this orchestrator. Pass nil to discard output.
func (o *Orchestrator) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	o.log = l
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// Session returns the session opened by Initialize, or nil before it.
func (o *Orchestrator) Session() engine.Session { return o.sess }

func (o *Orchestrator) expect(s State) error {
	if o.state != s {
		return fmt.Errorf("%w: in %v, need %v", ErrInvalidState, o.state, s)
	}
	return nil
}

// Initialize opens the session and configures it for ME-only H.264 at the
// frame size.
func (o *Orchestrator) Initialize() error {
	if err := o.expect(StateCreated); err != nil {
		return err
	}
	sess, err := o.dev.OpenSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	o.sess = sess
	o.stack.Push("destroy session", func() error {
		o.state = StateTornDown
		return sess.Destroy()
	})

	err = sess.Initialize(engine.InitializeParams{
		Codec:                engine.CodecH264,
		Preset:               Preset,
		Width:                o.width,
		Height:               o.height,
		MaxWidth:             o.width,
		MaxHeight:            o.height,
		FrameRateNum:         FrameRateNum,
		FrameRateDen:         FrameRateDen,
		EnableMEOnlyMode:     true,
		EnableOutputInVidmem: false,
	})
	if err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	o.state = StateInitialized
	o.log.Debug("estimate: session initialized", "width", o.width, "height", o.height)
	return nil
}

// Map maps the reference and then the input registration.
func (o *Orchestrator) Map(ref, in engine.RegisteredResource) error {
	if err := o.expect(StateInitialized); err != nil {
		return err
	}
	var err error
	if o.ref, err = o.mapOne("reference", ref); err != nil {
		return err
	}
	if o.in, err = o.mapOne("input", in); err != nil {
		return err
	}
	o.state = StateSurfacesMapped
	return nil
}

func (o *Orchestrator) mapOne(role string, r engine.RegisteredResource) (engine.MappedResource, error) {
	m, err := o.sess.MapInputResource(r)
	if err != nil {
		return 0, fmt.Errorf("map %s surface: %w", role, err)
	}
	sess := o.sess
	o.stack.Push("unmap "+role+" surface", func() error { return sess.UnmapInputResource(m) })
	return m, nil
}

// AllocateOutput creates the single motion vector buffer.
func (o *Orchestrator) AllocateOutput() error {
	if err := o.expect(StateSurfacesMapped); err != nil {
		return err
	}
	buf, err := o.sess.CreateMVBuffer()
	if err != nil {
		return fmt.Errorf("create motion vector buffer: %w", err)
	}
	o.buf = buf
	sess := o.sess
	o.stack.Push("destroy motion vector buffer", func() error { return sess.DestroyMVBuffer(buf) })
	o.state = StateBufferAllocated
	return nil
}

// Run performs the one motion estimation of this session.
func (o *Orchestrator) Run() error {
	if err := o.expect(StateBufferAllocated); err != nil {
		return err
	}
	err := o.sess.RunMotionEstimationOnly(engine.MEOnlyParams{
		Input:       o.in,
		Reference:   o.ref,
		InputWidth:  o.width,
		InputHeight: o.height,
		MVBuffer:    o.buf,
	})
	if err != nil {
		return fmt.Errorf("run motion estimation: %w", err)
	}
	o.state = StateEstimationRun
	return nil
}

// Retrieve locks the buffer (waiting for completion), copies its contents
// into a host-owned slice and unlocks it. The copy holds at least the
// records of the frame.
func (o *Orchestrator) Retrieve() ([]byte, error) {
	if err := o.expect(StateEstimationRun); err != nil {
		return nil, err
	}
	locked, err := o.sess.LockBitstream(o.buf, engine.LockParams{DoNotWait: false})
	if err != nil {
		return nil, fmt.Errorf("lock motion vector buffer: %w", err)
	}
	out := make([]byte, len(locked.Data))
	copy(out, locked.Data)
	if err := o.sess.UnlockBitstream(o.buf); err != nil {
		return nil, fmt.Errorf("unlock motion vector buffer: %w", err)
	}

	need, err := vector.BufferSize(o.width, o.height)
	if err != nil {
		return nil, err
	}
	if len(out) < need {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrShortBitstream, len(out), need)
	}
	o.result = out
	o.state = StateResultRetrieved
	o.log.Debug("estimate: result retrieved", "bytes", len(out))
	return out, nil
}

// Result returns the bytes copied by Retrieve.
func (o *Orchestrator) Result() []byte { return o.result }
