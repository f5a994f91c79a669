// Package gocvcam opens OS cameras with OpenCV through gocv.
// It is kept apart from package capture so that only binaries which talk to
// real hardware link against OpenCV.
package gocvcam

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/fleveque/ecosort/internal/capture"
)

// Camera is a capture.Device backed by gocv.VideoCapture.
type Camera struct {
	mu    sync.Mutex
	cap   *gocv.VideoCapture
	frame gocv.Mat
}

// Opener returns a capture.OpenFunc that reads and discards warmup frames
// after opening, so auto-exposure has settled before the still is taken.
func Opener(warmupFrames int) capture.OpenFunc {
	return func(id int) (capture.Device, error) {
		return Open(id, warmupFrames)
	}
}

// Open opens the camera with the given device id.
func Open(id, warmupFrames int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("opening camera %d: %w", id, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d did not open", id)
	}

	c := &Camera{cap: vc, frame: gocv.NewMat()}
	for i := 0; i < warmupFrames; i++ {
		if ok := vc.Read(&c.frame); !ok {
			c.Close()
			return nil, fmt.Errorf("camera %d: warmup read failed", id)
		}
	}
	return c, nil
}

// ReadJPEG grabs a frame and encodes it as JPEG.
func (c *Camera) ReadJPEG(quality int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cap == nil {
		return nil, errors.New("camera closed")
	}
	if ok := c.cap.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, errors.New("no frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, c.frame, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory that Close frees, so copy it out.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the Mat and the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cap == nil {
		return nil
	}
	c.frame.Close()
	err := c.cap.Close()
	c.cap = nil
	return err
}
