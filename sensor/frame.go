package sensor

import (
	"math"

	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrEmptyFrame     = utils.Error("frame has no pixels")
	ErrFrameDimension = utils.Error("frame dimensions do not match pixel count")
)

// Frame is a single grayscale capture
type Frame struct {
	Width  int
	Height int
	Pixels []uint8
}

// Validate checks frame dimensions against the pixel buffer
func (f *Frame) Validate() error {
	if len(f.Pixels) == 0 {
		return ErrEmptyFrame
	}
	if f.Width <= 0 || f.Height <= 0 || f.Width*f.Height != len(f.Pixels) {
		return ErrFrameDimension
	}
	return nil
}

// Brightness returns the mean pixel intensity
func (f *Frame) Brightness() float64 {
	if len(f.Pixels) == 0 {
		return 0
	}
	var sum float64
	for _, p := range f.Pixels {
		sum += float64(p)
	}
	return sum / float64(len(f.Pixels))
}

// Contrast returns the standard deviation of pixel intensity
func (f *Frame) Contrast() float64 {
	if len(f.Pixels) == 0 {
		return 0
	}
	mean := f.Brightness()
	var sum float64
	for _, p := range f.Pixels {
		d := float64(p) - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(f.Pixels)))
}

// Motion returns the mean absolute pixel difference against a previous frame;
// zero when the frames are not comparable
func (f *Frame) Motion(prev *Frame) float64 {
	if prev == nil || len(prev.Pixels) != len(f.Pixels) || len(f.Pixels) == 0 {
		return 0
	}
	var sum float64
	for i, p := range f.Pixels {
		sum += math.Abs(float64(p) - float64(prev.Pixels[i]))
	}
	return sum / float64(len(f.Pixels))
}
