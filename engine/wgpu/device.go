//go:build !nogpu

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/mvfield/engine"
)

// surface is a pitched storage buffer on the GPU.
type surface struct {
	buf        hal.Buffer
	pitch      int
	widthBytes int
	height     int
}

func (s *surface) Pitch() int      { return s.pitch }
func (s *surface) WidthBytes() int { return s.widthBytes }
func (s *surface) Height() int     { return s.height }

func (s *surface) size() uint64 { return uint64(s.pitch * s.height) } //nolint:gosec // positive by construction

type device struct {
	cfg      Engine
	instance hal.Instance // nil for shared devices
	dev      hal.Device
	queue    hal.Queue
	name     string
	external bool

	mu       sync.Mutex
	surfaces map[*surface]struct{}
	sessions int
	closed   bool
}

var _ engine.Device = (*device)(nil)

func newDevice(cfg Engine, instance hal.Instance, dev hal.Device, queue hal.Queue, name string, external bool) *device {
	return &device{
		cfg:      cfg,
		instance: instance,
		dev:      dev,
		queue:    queue,
		name:     name,
		external: external,
		surfaces: make(map[*surface]struct{}),
	}
}

func (d *device) Name() string { return d.name }

// MaxSupportedVersion reports the version this engine implements; every
// Vulkan compute device runs the whole ME-only contract.
func (d *device) MaxSupportedVersion() (engine.APIVersion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, engine.ErrDestroyed
	}
	return engine.RequiredVersion, nil
}

func (d *device) AllocPitch(widthBytes, height, align int) (engine.Surface, error) {
	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("%w: alignment %d is not a power of two", engine.ErrInvalidParam, align)
	}
	pitch, err := engine.AlignPitch(widthBytes, max(align, pitchAlign))
	if err != nil {
		return nil, err
	}
	if height <= 0 {
		return nil, fmt.Errorf("%w: height %d", engine.ErrInvalidParam, height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, engine.ErrDestroyed
	}
	s := &surface{pitch: pitch, widthBytes: widthBytes, height: height}
	s.buf, err = d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "mv_surface", Size: s.size(),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create surface buffer: %w", engine.ErrOutOfMemory, err)
	}
	d.surfaces[s] = struct{}{}
	slogger().Debug("wgpu: surface allocated", "width_bytes", widthBytes, "height", height, "pitch", pitch)
	return s, nil
}

// lookup returns the device-owned surface behind s.
// Caller must hold d.mu.
func (d *device) lookup(s engine.Surface) (*surface, error) {
	ss, ok := s.(*surface)
	if !ok {
		return nil, fmt.Errorf("%w: foreign surface %T", engine.ErrInvalidHandle, s)
	}
	if _, live := d.surfaces[ss]; !live {
		return nil, fmt.Errorf("%w: surface not allocated on this device", engine.ErrInvalidHandle)
	}
	return ss, nil
}

// CopyToSurface packs the rows at the surface pitch on the host and uploads
// them with one queue write.
func (d *device) CopyToSurface(dst engine.Surface, src []byte, srcPitch, widthBytes, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.lookup(dst)
	if err != nil {
		return err
	}
	if widthBytes > s.widthBytes || height > s.height {
		return fmt.Errorf("%w: copy %dx%d into %dx%d surface",
			engine.ErrInvalidParam, widthBytes, height, s.widthBytes, s.height)
	}
	staged := make([]byte, s.size())
	if err := engine.Copy2D(staged, s.pitch, src, srcPitch, widthBytes, height); err != nil {
		return err
	}
	d.queue.WriteBuffer(s.buf, 0, staged)
	return nil
}

func (d *device) Free(s engine.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ss, err := d.lookup(s)
	if err != nil {
		return err
	}
	d.dev.DestroyBuffer(ss.buf)
	delete(d.surfaces, ss)
	return nil
}

func (d *device) surfaceBuffer(s engine.Surface) (*surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookup(s)
}

func (d *device) OpenSession() (engine.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, engine.ErrDestroyed
	}
	d.sessions++
	return newSession(d), nil
}

func (d *device) sessionClosed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions--
}

// Close releases surfaces still alive, then the device and instance unless
// they belong to an external provider. Leftover resources are reported with
// ErrResourcesLive.
func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return engine.ErrDestroyed
	}
	d.closed = true

	n, sessions := len(d.surfaces), d.sessions
	for s := range d.surfaces {
		d.dev.DestroyBuffer(s.buf)
	}
	d.surfaces = nil
	if !d.external {
		d.dev.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.dev, d.queue, d.instance = nil, nil, nil

	if n > 0 || sessions > 0 {
		return fmt.Errorf("%w: %d surfaces, %d sessions", engine.ErrResourcesLive, n, sessions)
	}
	return nil
}
