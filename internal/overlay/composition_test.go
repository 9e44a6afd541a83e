package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/video-processing/internal/media"
)

func portraitAsset() media.VideoAsset {
	return media.VideoAsset{
		Path:      "in.mp4",
		Width:     1920,
		Height:    1080,
		Rotation:  90,
		FrameRate: 30,
	}
}

func TestNewCompositionUsesRenderSize(t *testing.T) {
	comp := NewComposition(portraitAsset(), nil, media.WatermarkSpec{})

	// A 90-degree source renders portrait.
	assert.Equal(t, 1080, comp.Width)
	assert.Equal(t, 1920, comp.Height)
	assert.Equal(t, 30.0, comp.FrameRate)
}

func TestNewCompositionFrameRateFallback(t *testing.T) {
	asset := portraitAsset()
	asset.FrameRate = 0

	comp := NewComposition(asset, nil, media.WatermarkSpec{})
	assert.Equal(t, media.FallbackFrameRate, comp.FrameRate)
}

func TestNewCompositionOneLayerPerSegment(t *testing.T) {
	segments := []media.CaptionSegment{
		{ID: "s1", Text: "first line", StartTime: 0, EndTime: 2,
			Words: []media.CaptionWord{{Word: "first"}, {Word: "line"}}},
		{ID: "s2", Text: "second", StartTime: 2, EndTime: 5},
	}

	comp := NewComposition(portraitAsset(), segments, media.WatermarkSpec{})

	require.Len(t, comp.Captions, 2)
	assert.Equal(t, "first line", comp.Captions[0].Text)
	assert.Equal(t, 2.0, comp.Captions[0].EndTime)
	assert.InDelta(t, 2.0-FadeDuration, comp.Captions[0].FadeOutStart, 1e-9)
}

func TestClampFadeOutStart(t *testing.T) {
	// Normal segment: fade-out begins FadeDuration before the end.
	assert.InDelta(t, 4.85, ClampFadeOutStart(2.0, 5.0), 1e-9)

	// Segment shorter than the fade window clamps to its start.
	assert.Equal(t, 1.0, ClampFadeOutStart(1.0, 1.1))
	assert.Equal(t, 1.0, ClampFadeOutStart(1.0, 1.0))
}

func TestCompositionEmpty(t *testing.T) {
	comp := NewComposition(portraitAsset(), nil, media.WatermarkSpec{})
	assert.True(t, comp.Empty())

	comp = NewComposition(portraitAsset(), nil, media.WatermarkSpec{Text: "anon"})
	assert.False(t, comp.Empty())

	comp = NewComposition(portraitAsset(), []media.CaptionSegment{{Text: "x", EndTime: 1}}, media.WatermarkSpec{})
	assert.False(t, comp.Empty())
}

func TestVisibleAt(t *testing.T) {
	segments := []media.CaptionSegment{
		{ID: "a", Text: "overlapping one", StartTime: 4.0, EndTime: 6.0},
		{ID: "b", Text: "overlapping two", StartTime: 4.4, EndTime: 5.0},
		{ID: "c", Text: "later", StartTime: 7.0, EndTime: 9.0},
	}
	comp := NewComposition(portraitAsset(), segments, media.WatermarkSpec{})

	visible := comp.VisibleAt(4.5)
	require.Len(t, visible, 2)
	assert.Equal(t, "overlapping one", visible[0].Text)
	assert.Equal(t, "overlapping two", visible[1].Text)

	// Display windows are half-open: a layer is gone at its end time.
	visible = comp.VisibleAt(6.0)
	assert.Empty(t, visible)

	assert.Empty(t, comp.VisibleAt(10.0))
}
