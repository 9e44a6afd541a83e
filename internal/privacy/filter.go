// Package privacy implements the per-frame face-region blur stage: detect
// faces on each decoded frame, blur the expanded face boxes, and composite
// the blurred crops back over the frame.
package privacy

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/bestfriendai/video-processing/internal/media"
)

// regionExpansion widens detected boxes by 20% per axis so the blur covers
// hair and ears, not just the detector's tight face box.
const regionExpansion = 0.2

// FrameResult is the outcome of transforming one frame. The set of variants
// is closed: a frame either passed through unchanged or had regions blurred.
type FrameResult interface {
	Frame() *media.Frame
}

// Unchanged carries a frame returned as-is: nothing detected, or detection
// degraded on this frame.
type Unchanged struct {
	frame *media.Frame
}

// Frame returns the untouched input frame.
func (u Unchanged) Frame() *media.Frame { return u.frame }

// Blurred carries a transformed copy of the frame and the regions applied.
type Blurred struct {
	frame   *media.Frame
	Regions []media.FaceRegion
}

// Frame returns the blurred frame copy.
func (b Blurred) Frame() *media.Frame { return b.frame }

// Filter blurs detected face regions on individual frames.
type Filter struct {
	detector  Detector
	intensity int
}

// NewFilter creates a filter with the given detector and blur intensity.
// Intensity is clamped to 0-100; the blur radius is intensity/2 pixels.
func NewFilter(detector Detector, intensity int) *Filter {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 100 {
		intensity = 100
	}
	return &Filter{detector: detector, intensity: intensity}
}

// Radius returns the blur radius in pixels for the configured intensity.
func (f *Filter) Radius() int { return f.intensity / 2 }

// TransformFrame blurs every detected face region on the frame.
//
// A detector failure on a single frame is non-fatal: the frame passes
// through unblurred so the pipeline still produces output when detection
// degrades (dark lighting, extreme angles). Zero detections also pass the
// input through untouched. The stage makes no single-application
// assumption, so re-blurring an already blurred frame is valid.
func (f *Filter) TransformFrame(ctx context.Context, frame *media.Frame) FrameResult {
	regions, err := f.detector.Detect(ctx, frame)
	if err != nil {
		log.WithError(err).WithField("pts", frame.PTS).Warn("Face detection failed, passing frame through")
		return Unchanged{frame: frame}
	}
	if len(regions) == 0 {
		return Unchanged{frame: frame}
	}

	out := frame.Clone()
	radius := f.Radius()
	for _, region := range regions {
		rect := expandRegion(region, frame.Width, frame.Height)
		if rect.empty() || radius == 0 {
			continue
		}
		blurRect(out, rect, radius)
	}

	return Blurred{frame: out, Regions: regions}
}

// pixelRect is a clamped pixel-space region, x0/y0 inclusive, x1/y1 exclusive.
type pixelRect struct {
	x0, y0, x1, y1 int
}

func (r pixelRect) empty() bool { return r.x1 <= r.x0 || r.y1 <= r.y0 }

// expandRegion widens a normalized box by regionExpansion per axis around
// its center, then clamps to frame bounds. A region touching any edge clamps
// cleanly instead of indexing outside the frame.
func expandRegion(region media.FaceRegion, width, height int) pixelRect {
	growX := region.Width * regionExpansion / 2
	growY := region.Height * regionExpansion / 2

	x0 := clamp01(region.X - growX)
	y0 := clamp01(region.Y - growY)
	x1 := clamp01(region.X + region.Width + growX)
	y1 := clamp01(region.Y + region.Height + growY)

	return pixelRect{
		x0: int(x0 * float64(width)),
		y0: int(y0 * float64(height)),
		x1: int(x1 * float64(width)),
		y1: int(y1 * float64(height)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// blurRect box-blurs all three planes inside the rect. Chroma planes use
// half the rect and half the radius to match 4:2:0 subsampling.
func blurRect(frame *media.Frame, rect pixelRect, radius int) {
	blurPlane(frame.Y, frame.YStride, frame.Height, rect, radius)

	chromaRect := pixelRect{x0: rect.x0 / 2, y0: rect.y0 / 2, x1: rect.x1 / 2, y1: rect.y1 / 2}
	chromaRadius := radius / 2
	if chromaRadius < 1 {
		chromaRadius = 1
	}
	blurPlane(frame.U, frame.UStride, frame.Height/2, chromaRect, chromaRadius)
	blurPlane(frame.V, frame.VStride, frame.Height/2, chromaRect, chromaRadius)
}

// blurPlane applies a box blur to one plane, writing only inside the rect.
// Samples are taken from an unmodified copy of the rect's neighborhood so
// the blur does not feed on its own output.
func blurPlane(plane []byte, stride, planeHeight int, rect pixelRect, radius int) {
	if rect.empty() || len(plane) == 0 {
		return
	}
	if rect.y1 > planeHeight {
		rect.y1 = planeHeight
	}
	if rect.x1 > stride {
		rect.x1 = stride
	}
	if rect.empty() {
		return
	}

	src := append([]byte(nil), plane...)

	for y := rect.y0; y < rect.y1; y++ {
		for x := rect.x0; x < rect.x1; x++ {
			sum := 0
			count := 0
			for dy := -radius; dy <= radius; dy++ {
				ny := y + dy
				if ny < 0 || ny >= planeHeight {
					continue
				}
				row := ny * stride
				for dx := -radius; dx <= radius; dx++ {
					nx := x + dx
					if nx < 0 || nx >= stride {
						continue
					}
					sum += int(src[row+nx])
					count++
				}
			}
			if count > 0 {
				plane[y*stride+x] = byte(sum / count)
			}
		}
	}
}
