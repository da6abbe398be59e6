package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixSeconds(t *testing.T) {
	assert.InDelta(t, float64(time.Now().Unix()), unixSeconds(), 2)
}

func TestFrame_Validate(t *testing.T) {
	tests := []struct {
		name        string
		frame       Frame
		expectedErr error
	}{
		{"valid", Frame{Width: 2, Height: 2, Pixels: []uint8{1, 2, 3, 4}}, nil},
		{"no pixels", Frame{Width: 2, Height: 2}, ErrEmptyFrame},
		{"dimension mismatch", Frame{Width: 3, Height: 2, Pixels: []uint8{1, 2, 3, 4}}, ErrFrameDimension},
		{"zero width", Frame{Width: 0, Height: 2, Pixels: []uint8{1, 2}}, ErrFrameDimension},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expectedErr == nil {
				assert.NoError(t, tt.frame.Validate())
			} else {
				assert.ErrorIs(t, tt.frame.Validate(), tt.expectedErr)
			}
		})
	}
}

func TestFrame_Brightness(t *testing.T) {
	frame := &Frame{Width: 2, Height: 2, Pixels: []uint8{0, 100, 200, 100}}
	assert.Equal(t, 100.0, frame.Brightness())

	uniform := &Frame{Width: 2, Height: 1, Pixels: []uint8{50, 50}}
	assert.Equal(t, 50.0, uniform.Brightness())
}

func TestFrame_Contrast(t *testing.T) {
	uniform := &Frame{Width: 2, Height: 2, Pixels: []uint8{80, 80, 80, 80}}
	assert.Equal(t, 0.0, uniform.Contrast())

	frame := &Frame{Width: 2, Height: 1, Pixels: []uint8{0, 200}}
	assert.Equal(t, 100.0, frame.Contrast())
}

func TestFrame_Motion(t *testing.T) {
	prev := &Frame{Width: 2, Height: 1, Pixels: []uint8{100, 100}}
	curr := &Frame{Width: 2, Height: 1, Pixels: []uint8{110, 90}}

	assert.Equal(t, 10.0, curr.Motion(prev))
	assert.Equal(t, 0.0, curr.Motion(curr))

	t.Run("no previous frame", func(t *testing.T) {
		assert.Equal(t, 0.0, curr.Motion(nil))
	})

	t.Run("mismatched sizes", func(t *testing.T) {
		small := &Frame{Width: 1, Height: 1, Pixels: []uint8{42}}
		assert.Equal(t, 0.0, curr.Motion(small))
	})
}

func TestStaticDetector(t *testing.T) {
	d := StaticDetector{Err: ErrEmptyFrame}
	_, err := d.Detect(nil)
	require.Error(t, err)

	empty := NullDetector{}
	detections, err := empty.Detect(nil)
	require.NoError(t, err)
	assert.Empty(t, detections)
}
