package hardware

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"
)

// CameraStatus describes the camera's availability.
type CameraStatus struct {
	Available      bool   `json:"available"`
	SimulationMode bool   `json:"simulation_mode"`
	Device         string `json:"device"`
}

// Camera provides single-frame snapshots. Live streaming is intentionally
// out of scope; the capability interface leaves room for a V4L2
// implementation behind the same contract.
type Camera interface {
	Status() CameraStatus
	Snapshot() ([]byte, error)
	Restart() error
	Close() error
}

// SimCamera produces placeholder frames when no USB camera is attached.
type SimCamera struct {
	mu        sync.Mutex
	frame     []byte
	frameTime time.Time
}

// NewSimCamera creates a simulated camera.
func NewSimCamera() *SimCamera {
	return &SimCamera{}
}

// Status reports the camera as available in simulation mode.
func (c *SimCamera) Status() CameraStatus {
	return CameraStatus{
		Available:      true,
		SimulationMode: true,
		Device:         "simulated",
	}
}

// Snapshot returns a placeholder JPEG. Frames are cached for one second so
// polling clients do not re-encode on every request.
func (c *SimCamera) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.frame != nil && now.Sub(c.frameTime) < time.Second {
		return c.frame, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Gray{Y: 64}}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}

	c.frame = buf.Bytes()
	c.frameTime = now
	return c.frame, nil
}

// Restart is a no-op for the simulated camera.
func (c *SimCamera) Restart() error { return nil }

// Close is a no-op.
func (c *SimCamera) Close() error { return nil }
