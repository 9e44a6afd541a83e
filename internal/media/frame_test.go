package media

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameDimensions(t *testing.T) {
	frame := NewFrame(64, 48)

	assert.Len(t, frame.Y, 64*48)
	assert.Len(t, frame.U, 32*24)
	assert.Len(t, frame.V, 32*24)
	assert.Equal(t, 64, frame.YStride)
	assert.Equal(t, 32, frame.UStride)
}

func TestFrameBytes(t *testing.T) {
	assert.Equal(t, 64*48*3/2, FrameBytes(64, 48))
}

func TestCloneIsDeep(t *testing.T) {
	frame := NewFrame(16, 16)
	frame.Y[0] = 100
	frame.PTS = 1.5

	clone := frame.Clone()
	require.Equal(t, frame.Y, clone.Y)
	require.Equal(t, frame.PTS, clone.PTS)

	clone.Y[0] = 200
	clone.U[0] = 50
	assert.Equal(t, byte(100), frame.Y[0])
	assert.Equal(t, byte(0), frame.U[0])
}

func TestImageSharesPlanes(t *testing.T) {
	frame := NewFrame(32, 32)
	img := frame.Image()

	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())
	assert.Equal(t, image.YCbCrSubsampleRatio420, img.SubsampleRatio)

	frame.Y[0] = 222
	assert.Equal(t, byte(222), img.Y[0])
}

func TestValidateRejectsShortPlanes(t *testing.T) {
	frame := NewFrame(16, 16)
	require.NoError(t, frame.validate())

	frame.Y = frame.Y[:10]
	assert.Error(t, frame.validate())

	assert.Error(t, (&Frame{Width: 0, Height: 16}).validate())
}
