package overlay

import (
	"context"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/bestfriendai/video-processing/internal/media"
)

// Renderer performs the single export pass for a composition.
type Renderer struct {
	ffmpegPath string
	runner     media.Runner
}

// NewRenderer creates a renderer using the given ffmpeg binary.
func NewRenderer(ffmpegPath string) *Renderer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Renderer{ffmpegPath: ffmpegPath, runner: media.ExecRunner{}}
}

// NewRendererWithRunner creates a renderer with an injected command runner.
func NewRendererWithRunner(ffmpegPath string, runner media.Runner) *Renderer {
	r := NewRenderer(ffmpegPath)
	r.runner = runner
	return r
}

// Render encodes the composition over the source into outputPath. The source
// audio track, when present, is copied unmodified. An empty composition
// degenerates to a stream copy.
func (r *Renderer) Render(ctx context.Context, comp *Composition, outputPath string) error {
	args := buildRenderArgs(comp, outputPath)

	log.WithFields(log.Fields{
		"source":   comp.Asset.Path,
		"output":   outputPath,
		"captions": len(comp.Captions),
		"copyOnly": comp.Empty(),
	}).Info("Rendering overlay composition")

	if _, err := r.runner.Run(ctx, r.ffmpegPath, args...); err != nil {
		return fmt.Errorf("%w: overlay render: %v", media.ErrEncodeFailed, err)
	}
	return nil
}

// buildRenderArgs assembles the export command line for one composition.
func buildRenderArgs(comp *Composition, outputPath string) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", comp.Asset.Path,
	}

	if comp.Empty() {
		return append(args,
			"-map", "0:v:0",
			"-map", "0:a?",
			"-c", "copy",
			"-movflags", "+faststart",
			outputPath,
		)
	}

	return append(args,
		"-filter_complex", comp.Build(),
		"-map", "[vout]",
		"-map", "0:a?",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", strconv.FormatFloat(comp.FrameRate, 'f', -1, 64),
		"-c:a", "copy",
		"-movflags", "+faststart",
		outputPath,
	)
}
