// Package overlay implements the timed caption/watermark compositor. Unlike
// the per-frame blur stage it builds a declarative layer set with time-keyed
// animations that a single encode pass renders, which keeps long videos
// cheap but limits transformations to layered 2D graphics.
package overlay

import (
	"github.com/bestfriendai/video-processing/internal/media"
)

const (
	// FadeDuration is the caption pop animation length in seconds.
	FadeDuration = 0.15

	// popStartScale is the initial scale of the caption pop-in.
	popStartScale = 0.9

	// captionAnchorY positions caption layers 70% down the frame.
	captionAnchorY = 0.70

	// captionWidthFrac sizes caption text to 85% of the frame width.
	captionWidthFrac = 0.85

	watermarkOpacity   = 0.85
	watermarkPadding   = 24
	watermarkLogoWidth = 120 // 60% of the fixed 200px watermark column
)

// CaptionLayer is one caption segment resolved into a renderable layer:
// fixed anchor, pop-in at StartTime, fade-out ending at EndTime.
type CaptionLayer struct {
	Text         string
	StartTime    float64
	EndTime      float64
	FadeOutStart float64
}

// Composition is the full declarative layer tree for one export: a base
// video layer, zero or more caption layers, and an optional watermark.
type Composition struct {
	Asset     media.VideoAsset
	Width     int
	Height    int
	FrameRate float64
	Captions  []CaptionLayer
	Watermark media.WatermarkSpec
	FontFile  string
}

// NewComposition resolves segments and watermark against a probed source.
// Render dimensions come from the orientation-aware size, and the export
// frame rate from the source's nominal rate with the fixed fallback.
func NewComposition(asset media.VideoAsset, segments []media.CaptionSegment, watermark media.WatermarkSpec) *Composition {
	width, height := asset.RenderSize()

	comp := &Composition{
		Asset:     asset,
		Width:     width,
		Height:    height,
		FrameRate: asset.EffectiveFrameRate(),
		Watermark: watermark,
	}

	// One layer per segment, not per word. Grouping by segment keeps the
	// caption stable for its whole display window instead of flickering
	// word by word.
	for _, seg := range segments {
		comp.Captions = append(comp.Captions, CaptionLayer{
			Text:         seg.Text,
			StartTime:    seg.StartTime,
			EndTime:      seg.EndTime,
			FadeOutStart: ClampFadeOutStart(seg.StartTime, seg.EndTime),
		})
	}

	return comp
}

// ClampFadeOutStart returns when a segment's fade-out begins. For very short
// segments the natural fade-out start (endTime - FadeDuration) would land
// before the fade-in; clamping to startTime keeps the animation window
// non-negative.
func ClampFadeOutStart(startTime, endTime float64) float64 {
	start := endTime - FadeDuration
	if start < startTime {
		return startTime
	}
	return start
}

// Empty reports whether the composition has nothing to draw, in which case
// rendering degenerates to a stream copy.
func (c *Composition) Empty() bool {
	return len(c.Captions) == 0 && c.Watermark.Empty()
}

// VisibleAt returns the caption layers whose display window covers t.
func (c *Composition) VisibleAt(t float64) []CaptionLayer {
	var visible []CaptionLayer
	for _, layer := range c.Captions {
		if t >= layer.StartTime && t < layer.EndTime {
			visible = append(visible, layer)
		}
	}
	return visible
}
