package enginetest

import (
	"fmt"

	"github.com/gogpu/mvfield/engine"
)

type surface struct {
	h          uint64
	data       []byte
	pitch      int
	widthBytes int
	height     int
}

func (s *surface) Pitch() int      { return s.pitch }
func (s *surface) WidthBytes() int { return s.widthBytes }
func (s *surface) Height() int     { return s.height }

type device struct {
	e *Engine
	h uint64
}

func (d *device) Name() string { return d.e.DeviceName }

func (d *device) MaxSupportedVersion() (engine.APIVersion, error) {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	if err := d.e.record(CallMaxSupportedVersion); err != nil {
		return 0, err
	}
	return d.e.Version, nil
}

func (d *device) AllocPitch(widthBytes, height, align int) (engine.Surface, error) {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	if err := d.e.record(CallAllocPitch); err != nil {
		return nil, err
	}
	pitch, err := engine.AlignPitch(widthBytes, align)
	if err != nil {
		return nil, err
	}
	return &surface{
		h:          d.e.acquire("surface"),
		data:       make([]byte, pitch*height),
		pitch:      pitch,
		widthBytes: widthBytes,
		height:     height,
	}, nil
}

func (d *device) CopyToSurface(dst engine.Surface, src []byte, srcPitch, widthBytes, height int) error {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	if err := d.e.record(CallCopyToSurface); err != nil {
		return err
	}
	s, ok := dst.(*surface)
	if !ok {
		return fmt.Errorf("%w: foreign surface %T", engine.ErrInvalidHandle, dst)
	}
	if err := engine.Copy2D(s.data, s.pitch, src, srcPitch, widthBytes, height); err != nil {
		return err
	}
	packed := make([]byte, widthBytes*height)
	for y := range height {
		copy(packed[y*widthBytes:], s.data[y*s.pitch:y*s.pitch+widthBytes])
	}
	d.e.copies = append(d.e.copies, packed)
	return nil
}

func (d *device) Free(s engine.Surface) error {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	if err := d.e.record(CallFree); err != nil {
		return err
	}
	ss, ok := s.(*surface)
	if !ok {
		return fmt.Errorf("%w: foreign surface %T", engine.ErrInvalidHandle, s)
	}
	return d.e.release(ss.h, "surface")
}

func (d *device) OpenSession() (engine.Session, error) {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	if err := d.e.record(CallOpenSession); err != nil {
		return nil, err
	}
	return &session{e: d.e, h: d.e.acquire("session")}, nil
}

func (d *device) Close() error {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	if err := d.e.record(CallClose); err != nil {
		return err
	}
	return d.e.release(d.h, "device")
}
