// Package capture acquires images: live frames from a camera device, or the
// bytes of a user-selected file. Either way the result is a model.Image ready
// for classification.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/config"
	"github.com/fleveque/ecosort/internal/model"
)

var (
	// ErrCameraUnavailable covers permission denial, a missing device and a
	// device held by another process. It is never retried.
	ErrCameraUnavailable = errors.New("capture: camera unavailable")

	// ErrReadFailure means a file or upload could not be turned into an image.
	ErrReadFailure = errors.New("capture: read failure")

	// ErrStreamReleased is returned when capturing from a stream after Release.
	ErrStreamReleased = errors.New("capture: stream already released")
)

const (
	FacingRear     = "rear"
	FacingFront    = "front"
	FacingExternal = "external"
)

// Device is an opened camera. Implementations must be safe to Close once.
type Device interface {
	// ReadJPEG grabs the current frame and encodes it as JPEG at the given quality.
	ReadJPEG(quality int) ([]byte, error)
	Close() error
}

// OpenFunc opens the camera with the given OS device id.
// The gocv implementation lives in internal/capture/gocvcam.
type OpenFunc func(id int) (Device, error)

// Provider hands out camera streams according to the configured device policy.
type Provider struct {
	devices []config.CameraDevice
	open    OpenFunc
	quality int
	logger  *zap.Logger
}

// NewProvider creates a Provider. Devices are ordered rear-facing first, then
// everything else in declared order.
func NewProvider(cfg config.CameraConfig, open OpenFunc, logger *zap.Logger) *Provider {
	devices := make([]config.CameraDevice, len(cfg.Devices))
	copy(devices, cfg.Devices)
	// sort.SliceStable keeps the declared order among devices with the same rank.
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Facing == FacingRear && devices[j].Facing != FacingRear
	})

	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	return &Provider{
		devices: devices,
		open:    open,
		quality: quality,
		logger:  logger,
	}
}

// RequestCameraStream opens the first device that works.
// It makes one attempt per device and no retries.
func (p *Provider) RequestCameraStream(ctx context.Context) (*Stream, error) {
	if p.open == nil || len(p.devices) == 0 {
		return nil, fmt.Errorf("%w: no camera configured", ErrCameraUnavailable)
	}

	var lastErr error
	for _, d := range p.devices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dev, err := p.open(d.ID)
		if err != nil {
			p.logger.Debug("camera device did not open",
				zap.Int("device", d.ID),
				zap.String("facing", d.Facing),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		p.logger.Info("camera stream acquired", zap.Int("device", d.ID), zap.String("facing", d.Facing))
		return &Stream{device: dev, id: d.ID, facing: d.Facing, quality: p.quality, logger: p.logger}, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrCameraUnavailable, lastErr)
}

// Stream is exclusive access to one opened device.
type Stream struct {
	device  Device
	id      int
	facing  string
	quality int
	logger  *zap.Logger

	// mu serializes frame reads against Release.
	mu       sync.Mutex
	released bool
	once     sync.Once
}

// Facing reports which way the acquired camera points.
func (s *Stream) Facing() string { return s.facing }

// CaptureFrame encodes the current frame as a JPEG image.
func (s *Stream) CaptureFrame(ctx context.Context) (model.Image, error) {
	if err := ctx.Err(); err != nil {
		return model.Image{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return model.Image{}, ErrStreamReleased
	}

	data, err := s.device.ReadJPEG(s.quality)
	if err != nil {
		return model.Image{}, fmt.Errorf("%w: camera %d: %w", ErrReadFailure, s.id, err)
	}
	if len(data) == 0 {
		return model.Image{}, fmt.Errorf("%w: camera %d returned an empty frame", ErrReadFailure, s.id)
	}

	return model.Image{Data: data, MIMEType: "image/jpeg"}, nil
}

// Release closes the device. It is safe to call any number of times, from any
// goroutine; the device is closed exactly once.
func (s *Stream) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.released = true
		if err := s.device.Close(); err != nil {
			s.logger.Warn("closing camera", zap.Int("device", s.id), zap.Error(err))
			return
		}
		s.logger.Debug("camera stream released", zap.Int("device", s.id))
	})
}

// Released reports whether Release has run.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
