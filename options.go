package mvfield

import (
	"log/slog"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/resource"
)

// Option configures a run.
//
// Example:
//
//	// Force the CPU engine and keep debug copies of the inputs
//	res, err := mvfield.Run(ref, in, out,
//	    mvfield.WithEngine(software.New()),
//	    mvfield.WithDebugDir("."))
type Option func(*options)

// options holds the configuration of one run.
type options struct {
	engine    engine.Engine
	ordinal   int
	debugDir  string
	alignment int
	logger    *slog.Logger
}

// defaultOptions returns the default run options.
func defaultOptions() options {
	return options{
		engine:    nil, // Best registered engine via engine.OpenDefault
		alignment: resource.DefaultAlignment,
	}
}

func newOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// log returns the logger for this run.
func (o options) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return Logger()
}

// WithEngine selects the engine to open instead of the best registered one.
func WithEngine(e engine.Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithDeviceOrdinal selects the device index within the engine. Default 0.
func WithDeviceOrdinal(ordinal int) Option {
	return func(o *options) {
		o.ordinal = ordinal
	}
}

// WithDebugDir makes Run write PNG copies of the decoded reference and
// input frames (ref_image.png, input_image.png) into dir.
func WithDebugDir(dir string) Option {
	return func(o *options) {
		o.debugDir = dir
	}
}

// WithSurfaceAlignment sets the pitch alignment requested for device
// surfaces. It must be a power of two; engines may align further.
func WithSurfaceAlignment(align int) Option {
	return func(o *options) {
		o.alignment = align
	}
}

// WithLogger sets the logger for this run's pipeline, surface manager and
// session orchestrator, overriding the package logger. Engine messages
// still go to the logger given to SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
