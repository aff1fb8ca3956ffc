// Package software provides a CPU motion estimation engine.
//
// The device lives in host memory and sessions run an integer full search
// over 8x8 sub-blocks. It is the fallback when no GPU engine opens, and the
// reference the GPU shader is checked against.
//
// Importing the package registers the engine under engine.NameSoftware.
package software

import (
	"log/slog"

	"github.com/gogpu/mvfield/engine"
)

// DefaultSearchRange is the search window half-size in whole pixels.
const DefaultSearchRange = 16

// MaxSearchRange caps SearchRange so quarter-pel vectors stay far inside int16.
const MaxSearchRange = 256

func init() {
	engine.Register(engine.NameSoftware, func() engine.Engine { return New() })
}

// Engine is the CPU engine. Its fields may be changed before OpenDevice.
type Engine struct {
	// SearchRange is the search window half-size in pixels.
	SearchRange int

	// Workers is the number of search goroutines; 0 means GOMAXPROCS.
	Workers int

	// Limits bounds accepted frame sizes.
	Limits engine.Limits

	// Version is the API version reported by devices.
	Version engine.APIVersion
}

// New returns an engine with default settings.
func New() *Engine {
	return &Engine{
		SearchRange: DefaultSearchRange,
		Limits:      engine.DefaultLimits(),
		Version:     engine.RequiredVersion,
	}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return engine.NameSoftware }

// OpenDevice implements engine.Engine. Only ordinal 0 exists.
func (e *Engine) OpenDevice(ordinal int) (engine.Device, error) {
	if ordinal != 0 {
		return nil, engine.ErrNoDevice
	}
	slogger().Debug("software: device opened", "search_range", e.SearchRange, "workers", e.Workers)
	return newDevice(*e), nil
}

// SetLogger sets the package logger. Pass nil to discard output.
func (e *Engine) SetLogger(l *slog.Logger) { setLogger(l) }
