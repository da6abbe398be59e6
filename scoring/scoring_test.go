package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClass(t *testing.T) {
	tests := []struct {
		name        string
		class       Class
		isVehicle   bool
		isEmergency bool
		valid       bool
	}{
		{"car", ClassCar, true, false, true},
		{"motorcycle", ClassMotorcycle, true, false, true},
		{"bus", ClassBus, true, false, true},
		{"truck", ClassTruck, true, false, true},
		{"bicycle", ClassBicycle, true, false, true},
		{"emergency", ClassEmergency, false, true, true},
		{"unknown", Class("pedestrian"), false, false, false},
		{"empty", Class(""), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isVehicle, tt.class.IsVehicle())
			assert.Equal(t, tt.isEmergency, tt.class.IsEmergency())
			assert.Equal(t, tt.valid, tt.class.Valid())
		})
	}
}

func TestBox(t *testing.T) {
	b := Box{X1: 10, Y1: 20, X2: 110, Y2: 70}
	assert.Equal(t, 5000.0, b.Area())
	assert.True(t, b.Valid())

	assert.False(t, Box{X1: 10, Y1: 10, X2: 10, Y2: 20}.Valid())
	assert.False(t, Box{X1: 20, Y1: 10, X2: 10, Y2: 20}.Valid())
}

func TestDetection_Validate(t *testing.T) {
	valid := Detection{Class: ClassCar, Confidence: 0.9, Box: Box{X1: 0, Y1: 0, X2: 10, Y2: 10}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name        string
		detection   Detection
		expectedErr error
	}{
		{
			name:        "unknown class",
			detection:   Detection{Class: "tank", Confidence: 0.9, Box: Box{X2: 10, Y2: 10}},
			expectedErr: ErrUnknownClass,
		},
		{
			name:        "confidence above range",
			detection:   Detection{Class: ClassCar, Confidence: 1.5, Box: Box{X2: 10, Y2: 10}},
			expectedErr: ErrInvalidConfidence,
		},
		{
			name:        "negative confidence",
			detection:   Detection{Class: ClassCar, Confidence: -0.1, Box: Box{X2: 10, Y2: 10}},
			expectedErr: ErrInvalidConfidence,
		},
		{
			name:        "degenerate box",
			detection:   Detection{Class: ClassCar, Confidence: 0.5, Box: Box{X1: 10, Y1: 10, X2: 10, Y2: 10}},
			expectedErr: ErrInvalidBox,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.detection.Validate(), tt.expectedErr)
		})
	}
}

func TestScore(t *testing.T) {
	t.Run("no detections", func(t *testing.T) {
		result := Score(nil, 640, 480)
		assert.Equal(t, 0.0, result.CongestionLevel)
		assert.False(t, result.EmergencyPresent)
		assert.Equal(t, 0, result.VehicleCount)
	})

	t.Run("partial coverage", func(t *testing.T) {
		// two boxes of 100x100 and 200x140 on a 1000x100 frame
		detections := []Detection{
			{Class: ClassCar, Confidence: 0.9, Box: Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
			{Class: ClassTruck, Confidence: 0.8, Box: Box{X1: 100, Y1: 0, X2: 300, Y2: 100}},
		}
		result := Score(detections, 1000, 100)
		assert.InDelta(t, 0.3, result.CongestionLevel, 1e-9)
		assert.Equal(t, 2, result.VehicleCount)
	})

	t.Run("overlap is not deduplicated", func(t *testing.T) {
		detections := []Detection{
			{Class: ClassCar, Confidence: 0.9, Box: Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
			{Class: ClassCar, Confidence: 0.9, Box: Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		}
		result := Score(detections, 1000, 100)
		assert.InDelta(t, 0.2, result.CongestionLevel, 1e-9)
	})

	t.Run("clamped to one", func(t *testing.T) {
		detections := []Detection{
			{Class: ClassBus, Confidence: 1, Box: Box{X1: 0, Y1: 0, X2: 640, Y2: 480}},
			{Class: ClassTruck, Confidence: 1, Box: Box{X1: 0, Y1: 0, X2: 640, Y2: 480}},
		}
		result := Score(detections, 640, 480)
		assert.Equal(t, 1.0, result.CongestionLevel)
	})

	t.Run("zero frame area", func(t *testing.T) {
		detections := []Detection{
			{Class: ClassCar, Confidence: 0.9, Box: Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		}
		result := Score(detections, 0, 480)
		assert.Equal(t, 0.0, result.CongestionLevel)
		assert.Equal(t, 1, result.VehicleCount)

		result = Score(detections, 640, -1)
		assert.Equal(t, 0.0, result.CongestionLevel)
	})

	t.Run("emergency does not add area", func(t *testing.T) {
		detections := []Detection{
			{Class: ClassEmergency, Confidence: 0.95, Box: Box{X1: 0, Y1: 0, X2: 640, Y2: 480}},
		}
		result := Score(detections, 640, 480)
		assert.Equal(t, 0.0, result.CongestionLevel)
		assert.True(t, result.EmergencyPresent)
		assert.Equal(t, 1, result.EmergencyCount)
		assert.Equal(t, 0, result.VehicleCount)
	})

	t.Run("malformed detections dropped", func(t *testing.T) {
		detections := []Detection{
			{Class: ClassCar, Confidence: 0.9, Box: Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
			{Class: "ufo", Confidence: 0.9, Box: Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
			{Class: ClassCar, Confidence: 2, Box: Box{X1: 0, Y1: 0, X2: 100, Y2: 100}},
		}
		result := Score(detections, 1000, 100)
		assert.Equal(t, 2, result.DroppedCount)
		assert.Equal(t, 1, result.VehicleCount)
		assert.InDelta(t, 0.1, result.CongestionLevel, 1e-9)
	})

	t.Run("deterministic", func(t *testing.T) {
		detections := []Detection{
			{Class: ClassCar, Confidence: 0.9, Box: Box{X1: 5, Y1: 7, X2: 113, Y2: 91}},
			{Class: ClassEmergency, Confidence: 0.6, Box: Box{X1: 50, Y1: 50, X2: 200, Y2: 220}},
		}
		first := Score(detections, 640, 480)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Score(detections, 640, 480))
		}
	})
}
