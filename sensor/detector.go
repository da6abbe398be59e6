package sensor

import (
	"github.com/oddbit-project/roadwatch/scoring"
)

// Detector produces object detections for a frame. Implementations wrap the
// actual detection engine; the client treats detector failures as an empty
// detection set and keeps reporting.
type Detector interface {
	Detect(frame *Frame) ([]scoring.Detection, error)
}

// NullDetector reports no detections; used when no detection engine is
// attached
type NullDetector struct{}

func (NullDetector) Detect(*Frame) ([]scoring.Detection, error) {
	return nil, nil
}

// StaticDetector replays a fixed detection set for every frame; used by tests
// and bench rigs
type StaticDetector struct {
	Detections []scoring.Detection
	Err        error
}

func (d StaticDetector) Detect(*Frame) ([]scoring.Detection, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Detections, nil
}
