package scoring

import (
	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrInvalidBox        = utils.Error("invalid bounding box")
	ErrInvalidConfidence = utils.Error("confidence out of range")
	ErrUnknownClass      = utils.Error("unknown detection class")
)

// Class identifies the kind of object reported by the detection engine.
// Emergency vehicles must be reported with a distinct class; they are never
// inferred from the regular vehicle classes.
type Class string

const (
	ClassCar        Class = "car"
	ClassMotorcycle Class = "motorcycle"
	ClassBus        Class = "bus"
	ClassTruck      Class = "truck"
	ClassBicycle    Class = "bicycle"
	ClassEmergency  Class = "emergency"
)

// IsVehicle returns true for regular (non-emergency) vehicle classes
func (c Class) IsVehicle() bool {
	switch c {
	case ClassCar, ClassMotorcycle, ClassBus, ClassTruck, ClassBicycle:
		return true
	}
	return false
}

// IsEmergency returns true for the emergency vehicle class
func (c Class) IsEmergency() bool {
	return c == ClassEmergency
}

// Valid returns true if the class is known
func (c Class) Valid() bool {
	return c.IsVehicle() || c.IsEmergency()
}

// Box is an axis-aligned bounding box in pixel coordinates, x1 < x2 and y1 < y2
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Area returns the box area in square pixels
func (b Box) Area() float64 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Valid returns true if the box has positive extent on both axes
func (b Box) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Detection is a single object reported by the detection engine for one frame
type Detection struct {
	Class      Class   `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Validate checks detection fields
func (d Detection) Validate() error {
	if !d.Class.Valid() {
		return ErrUnknownClass
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return ErrInvalidConfidence
	}
	if !d.Box.Valid() {
		return ErrInvalidBox
	}
	return nil
}

// Result holds the outcome of scoring one frame
type Result struct {
	CongestionLevel  float64
	EmergencyPresent bool
	VehicleCount     int
	EmergencyCount   int
	DroppedCount     int // malformed detections discarded
}

// Score derives the congestion level of one frame from its detections.
// Bounding-box areas of regular vehicles are summed without overlap
// deduplication and normalized by the frame area; the result is clamped to
// [0,1]. A non-positive frame area yields 0.0. Malformed detections are
// dropped and counted, never an error. Score is a pure function: identical
// inputs always produce identical results.
func Score(detections []Detection, frameWidth, frameHeight int) Result {
	var result Result
	var vehicleArea float64

	for _, d := range detections {
		if d.Validate() != nil {
			result.DroppedCount++
			continue
		}
		switch {
		case d.Class.IsEmergency():
			result.EmergencyCount++
		case d.Class.IsVehicle():
			result.VehicleCount++
			vehicleArea += d.Box.Area()
		}
	}

	result.EmergencyPresent = result.EmergencyCount > 0

	frameArea := float64(frameWidth) * float64(frameHeight)
	if frameWidth <= 0 || frameHeight <= 0 {
		return result
	}

	result.CongestionLevel = min(1.0, vehicleArea/frameArea)
	return result
}
