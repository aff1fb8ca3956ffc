//go:build !nogpu

package wgpu

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/mvfield/engine"
)

// DefaultSearchRange is the search window half-size in whole pixels.
const DefaultSearchRange = 16

// DefaultWaitTimeout bounds a single fence wait.
const DefaultWaitTimeout = 30 * time.Second

func init() {
	engine.Register(engine.NameWGPU, func() engine.Engine { return New() })
}

// Engine opens Vulkan adapters through wgpu/hal.
type Engine struct {
	// SearchRange is the search window half-size in pixels.
	SearchRange int

	// Limits bounds accepted frame sizes.
	Limits engine.Limits

	// WaitTimeout bounds the fence wait after a motion estimation dispatch.
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

// OpenDevice implements engine.Engine. Adapters are ordered as the Vulkan
// backend enumerates them; ordinal selects among them.
func (e *Engine) OpenDevice(ordinal int) (engine.Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not registered", engine.ErrNotAvailable)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", engine.ErrNotAvailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if ordinal < 0 || ordinal >= len(adapters) {
		instance.Destroy()
		return nil, fmt.Errorf("%w: ordinal %d, %d adapters", engine.ErrNoDevice, ordinal, len(adapters))
	}
	selected := &adapters[ordinal]
	if selected.Info.DeviceType != gputypes.DeviceTypeDiscreteGPU &&
		selected.Info.DeviceType != gputypes.DeviceTypeIntegratedGPU {
		slogger().Warn("wgpu: selected adapter is not a hardware GPU", "name", selected.Info.Name)
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", engine.ErrNoDevice, err)
	}
	slogger().Info("wgpu: device opened", "name", selected.Info.Name, "ordinal", ordinal)
	return newDevice(*e, instance, openDev.Device, openDev.Queue, selected.Info.Name, false), nil
}

// NewSharedDevice wraps the HAL device of an external provider (for example
// a gogpu application). The provider must expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue. Closing the returned device releases
// only resources created through it.
func (e *Engine) NewSharedDevice(provider gpucontext.DeviceProvider) (engine.Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", engine.ErrInvalidParam)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", engine.ErrInvalidParam)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", engine.ErrInvalidParam)
	}
	slogger().Info("wgpu: using shared GPU device")
	return newDevice(*e, nil, device, queue, "shared GPU device", true), nil
}
