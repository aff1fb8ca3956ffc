//go:build nogpu

package wgpu

import (
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/mvfield/engine"
)

// DefaultSearchRange is the search window half-size in whole pixels.
const DefaultSearchRange = 16

// DefaultWaitTimeout bounds a single fence wait.
const DefaultWaitTimeout = 30 * time.Second

func init() {
	engine.Register(engine.NameWGPU, func() engine.Engine { return New() })
}

// Engine is the GPU engine compiled out by the nogpu tag.
type Engine struct {
	SearchRange int
	Limits      engine.Limits
	WaitTimeout time.Duration
}

// New returns an engine with default settings.
func New() *Engine {
	return &Engine{
		SearchRange: DefaultSearchRange,
		Limits:      engine.DefaultLimits(),
		WaitTimeout: DefaultWaitTimeout,
	}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return engine.NameWGPU }

// SetLogger sets the package logger. Pass nil to discard output.
func (e *Engine) SetLogger(l *slog.Logger) { setLogger(l) }

// OpenDevice always fails with engine.ErrNotAvailable.
func (e *Engine) OpenDevice(int) (engine.Device, error) {
	return nil, engine.ErrNotAvailable
}

// NewSharedDevice always fails with engine.ErrNotAvailable.
func (e *Engine) NewSharedDevice(gpucontext.DeviceProvider) (engine.Device, error) {
	return nil, engine.ErrNotAvailable
}
