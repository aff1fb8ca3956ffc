package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/mvfield/engine"
)

// surface is a pitched allocation in host memory.
type surface struct {
	data       []byte
	pitch      int
	widthBytes int
	height     int
}

func (s *surface) Pitch() int      { return s.pitch }
func (s *surface) WidthBytes() int { return s.widthBytes }
func (s *surface) Height() int     { return s.height }

// device is a host-memory device context.
type device struct {
	cfg Engine

	mu       sync.Mutex
	surfaces map[*surface]struct{}
	sessions int
	closed   bool
}

var _ engine.Device = (*device)(nil)

func newDevice(cfg Engine) *device {
	return &device{cfg: cfg, surfaces: make(map[*surface]struct{})}
}

func (d *device) Name() string { return "software (CPU)" }

func (d *device) MaxSupportedVersion() (engine.APIVersion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, engine.ErrDestroyed
	}
	return d.cfg.Version, nil
}

func (d *device) AllocPitch(widthBytes, height, align int) (engine.Surface, error) {
	pitch, err := engine.AlignPitch(widthBytes, align)
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
	s := &surface{
		data:       make([]byte, pitch*height),
		pitch:      pitch,
		widthBytes: widthBytes,
		height:     height,
	}
	d.surfaces[s] = struct{}{}
	slogger().Debug("software: surface allocated", "width_bytes", widthBytes, "height", height, "pitch", pitch)
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
	return engine.Copy2D(s.data, s.pitch, src, srcPitch, widthBytes, height)
}

func (d *device) Free(s engine.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ss, err := d.lookup(s)
	if err != nil {
		return err
	}
	delete(d.surfaces, ss)
	return nil
}

// surfaceData returns the rows of a live surface.
func (d *device) surfaceData(s engine.Surface) (*surface, error) {
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

// Close destroys the device. Surfaces or sessions still alive are reported
// with ErrResourcesLive; the device is closed either way.
func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return engine.ErrDestroyed
	}
	d.closed = true
	if n := len(d.surfaces); n > 0 || d.sessions > 0 {
		return fmt.Errorf("%w: %d surfaces, %d sessions", engine.ErrResourcesLive, n, d.sessions)
	}
	return nil
}
