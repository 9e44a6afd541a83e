package media

import (
	"fmt"
	"image"
)

// Frame is a single decoded video frame in planar YUV420 layout, the pixel
// format the decode pipe emits.
type Frame struct {
	Width   int
	Height  int
	Y       []byte
	U       []byte
	V       []byte
	YStride int
	UStride int
	VStride int
	PTS     float64 // presentation time in seconds
}

// FrameBytes returns the byte size of one YUV420 frame at the given
// dimensions.
func FrameBytes(width, height int) int {
	return width*height + 2*((width/2)*(height/2))
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:   width,
		Height:  height,
		Y:       make([]byte, width*height),
		U:       make([]byte, (width/2)*(height/2)),
		V:       make([]byte, (width/2)*(height/2)),
		YStride: width,
		UStride: width / 2,
		VStride: width / 2,
	}
}

// Clone creates a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	return &Frame{
		Width:   f.Width,
		Height:  f.Height,
		Y:       append([]byte(nil), f.Y...),
		U:       append([]byte(nil), f.U...),
		V:       append([]byte(nil), f.V...),
		YStride: f.YStride,
		UStride: f.UStride,
		VStride: f.VStride,
		PTS:     f.PTS,
	}
}

// Image wraps the frame planes in an image.YCbCr without copying. The
// returned image shares memory with the frame.
func (f *Frame) Image() *image.YCbCr {
	return &image.YCbCr{
		Y:              f.Y,
		Cb:             f.U,
		Cr:             f.V,
		YStride:        f.YStride,
		CStride:        f.UStride,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, f.Width, f.Height),
	}
}

// validate checks plane sizes against the frame dimensions.
func (f *Frame) validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	if len(f.Y) < f.Width*f.Height {
		return fmt.Errorf("luma plane too small: %d < %d", len(f.Y), f.Width*f.Height)
	}
	chroma := (f.Width / 2) * (f.Height / 2)
	if len(f.U) < chroma || len(f.V) < chroma {
		return fmt.Errorf("chroma plane too small for %dx%d frame", f.Width, f.Height)
	}
	return nil
}
