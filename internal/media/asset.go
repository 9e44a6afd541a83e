package media

// FallbackFrameRate is used when a source reports no usable nominal rate.
const FallbackFrameRate = 30.0

// VideoAsset describes a source or output video. It is built once by Probe
// and never mutated afterwards.
type VideoAsset struct {
	Path      string
	Width     int
	Height    int
	Rotation  int // degrees, normalized to 0/90/180/270
	Duration  float64
	FrameRate float64
	HasAudio  bool
}

// RenderSize returns the effective display dimensions after applying the
// orientation transform. Stored dimensions and rotation metadata can
// disagree (portrait video stored with a rotation flag); encoding at the
// stored size in that case exports at the wrong aspect ratio.
func (a VideoAsset) RenderSize() (width, height int) {
	if a.Rotation == 90 || a.Rotation == 270 {
		return a.Height, a.Width
	}
	return a.Width, a.Height
}

// EffectiveFrameRate returns the nominal frame rate, falling back to a fixed
// rate when the source reports none.
func (a VideoAsset) EffectiveFrameRate() float64 {
	if a.FrameRate > 0 {
		return a.FrameRate
	}
	return FallbackFrameRate
}

// FaceRegion is a detected face on a single frame. Coordinates are
// normalized to 0..1 image space.
type FaceRegion struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence,omitempty"`
}
