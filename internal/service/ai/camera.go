package ai

import (
	"fmt"
	"sync"
	"sync/atomic"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/vision"

	"gocv.io/x/gocv"
)

// Camera is the live capture device. Reads are expected from a single
// goroutine; Close may be called from any goroutine and never races an
// in-flight read.
type Camera struct {
	capture  *gocv.VideoCapture
	device   string
	mu       sync.Mutex
	closing  atomic.Bool
	released bool
	logger   *logger.Logger
}

// OpenCamera opens a device index ("0") or a stream/file URL.
func OpenCamera(device string, logger *logger.Logger) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("could not open camera %s: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("could not open camera %s", device)
	}

	logger.Info("Camera %s opened (%.0fx%.0f @ %.1f fps)", device,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight), vc.Get(gocv.VideoCaptureFPS))
	return &Camera{capture: vc, device: device, logger: logger}, nil
}

func (c *Camera) Read() (vision.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing.Load() {
		c.release()
		return nil, false
	}

	mat := gocv.NewMat()
	if !c.capture.Read(&mat) || mat.Empty() {
		mat.Close()
		return nil, false
	}
	return &matFrame{mat: mat}, true
}

// Close stops the camera. If a read is in progress, the reader releases the
// device once it returns.
func (c *Camera) Close() error {
	c.closing.Store(true)
	if !c.mu.TryLock() {
		return nil
	}
	defer c.mu.Unlock()
	return c.release()
}

func (c *Camera) release() error {
	if c.released {
		return nil
	}
	c.released = true
	c.logger.Info("Camera %s released", c.device)
	return c.capture.Close()
}
