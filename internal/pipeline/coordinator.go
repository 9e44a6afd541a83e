// Package pipeline owns the end-to-end local transform job: probe the
// source, run the chosen stage(s), encode, verify the output, and clean up
// temp files on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bestfriendai/video-processing/internal/media"
	"github.com/bestfriendai/video-processing/internal/overlay"
	"github.com/bestfriendai/video-processing/internal/privacy"
)

// minOutputBytes rejects outputs below this size as corrupt. Encode
// sessions can report completion while producing a truncated file.
const minOutputBytes = 1024

// frameQueueDepth bounds the decode→encode channel. The producer blocks
// when the encoder falls behind, so at most this many frames are in flight.
const frameQueueDepth = 8

// State is a coordinator pipeline stage.
type State string

const (
	StateIdle         State = "idle"
	StateReading      State = "reading"
	StateTransforming State = "transforming"
	StateWriting      State = "writing"
	StateVerifying    State = "verifying"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// validTransition enforces the coordinator state machine edges.
func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateReading || to == StateFailed
	case StateReading:
		return to == StateTransforming || to == StateWriting || to == StateFailed
	case StateTransforming:
		return to == StateWriting || to == StateFailed
	case StateWriting:
		return to == StateVerifying || to == StateTransforming || to == StateFailed
	case StateVerifying:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

// Options selects which stages a job runs and their inputs.
type Options struct {
	BlurFaces     bool
	BlurIntensity int
	Segments      []media.CaptionSegment
	Watermark     media.WatermarkSpec
}

// wantsOverlay reports whether the caption/watermark pass should run.
func (o Options) wantsOverlay() bool {
	return len(o.Segments) > 0 || !o.Watermark.Empty()
}

// Result describes a completed local transform.
type Result struct {
	OutputPath string
	Frames     int
	Asset      media.VideoAsset
}

// Coordinator runs local transform jobs. Each Run executes on its own
// background goroutine; completion is delivered through the callback, never
// by polling coordinator state. Once started a job runs to completion or
// failure — there is no mid-job cancellation.
type Coordinator struct {
	ffmpegPath string
	fontFile   string
	prober     *media.Prober
	renderer   *overlay.Renderer
	detector   privacy.Detector
	tempDir    string
	onStage    func(State)
}

// New creates a coordinator. detector may be nil when face blur is never
// requested; fontFile may be empty to render captions with the system font.
func New(ffmpegPath, fontFile string, prober *media.Prober, renderer *overlay.Renderer, detector privacy.Detector, tempDir string) *Coordinator {
	return &Coordinator{
		ffmpegPath: ffmpegPath,
		fontFile:   fontFile,
		prober:     prober,
		renderer:   renderer,
		detector:   detector,
		tempDir:    tempDir,
	}
}

// OnStage registers a stage-change callback, invoked from the job goroutine.
func (c *Coordinator) OnStage(fn func(State)) { c.onStage = fn }

// Run starts a job on a background worker and reports the outcome through
// done. Errors arrive as typed values (media.ErrNoVideoTrack,
// media.ErrEncodeFailed, media.ErrDetectionUnavailable), never as panics
// across the async boundary.
func (c *Coordinator) Run(ctx context.Context, sourcePath string, opts Options, done func(Result, error)) {
	go func() {
		result, err := c.run(ctx, sourcePath, opts)
		done(result, err)
	}()
}

// RunSync executes a job on the calling goroutine.
func (c *Coordinator) RunSync(ctx context.Context, sourcePath string, opts Options) (Result, error) {
	return c.run(ctx, sourcePath, opts)
}

func (c *Coordinator) run(ctx context.Context, sourcePath string, opts Options) (result Result, err error) {
	state := StateIdle
	advance := func(to State) {
		if !validTransition(state, to) {
			log.WithFields(log.Fields{"from": state, "to": to}).Error("Invalid pipeline transition")
		}
		state = to
		if c.onStage != nil {
			c.onStage(to)
		}
	}

	var temps []string
	defer func() {
		if err != nil {
			advance(StateFailed)
			for _, path := range temps {
				removeQuiet(path)
			}
		}
	}()

	if opts.BlurFaces && c.detector == nil {
		return Result{}, fmt.Errorf("blur requested: %w", media.ErrDetectionUnavailable)
	}

	advance(StateReading)
	asset, err := c.prober.Probe(ctx, sourcePath)
	if err != nil {
		return Result{}, err
	}

	current := asset
	frames := 0

	if opts.BlurFaces {
		advance(StateTransforming)
		blurOut := c.tempPath()
		temps = append(temps, blurOut)

		advance(StateWriting)
		frames, err = c.runBlurPass(ctx, current, opts.BlurIntensity, blurOut)
		if err != nil {
			return Result{}, err
		}
		if err = verifyOutput(blurOut); err != nil {
			return Result{}, err
		}
		current = media.VideoAsset{Path: blurOut}

		if opts.wantsOverlay() {
			// The overlay pass reads the blurred intermediate as its source.
			current, err = c.prober.Probe(ctx, current.Path)
			if err != nil {
				return Result{}, err
			}
			advance(StateTransforming)
		}
	}

	if opts.wantsOverlay() {
		if state != StateTransforming {
			advance(StateTransforming)
		}
		overlayOut := c.tempPath()
		temps = append(temps, overlayOut)

		advance(StateWriting)
		comp := overlay.NewComposition(current, opts.Segments, opts.Watermark)
		comp.FontFile = c.fontFile
		if err = c.renderer.Render(ctx, comp, overlayOut); err != nil {
			return Result{}, err
		}
		current = media.VideoAsset{Path: overlayOut}
	}

	if !opts.BlurFaces && !opts.wantsOverlay() {
		// No stage selected: export a verified copy so the contract of "a
		// new file the caller owns" holds for every job.
		advance(StateWriting)
		copyOut := c.tempPath()
		temps = append(temps, copyOut)
		comp := overlay.NewComposition(asset, nil, media.WatermarkSpec{})
		if err = c.renderer.Render(ctx, comp, copyOut); err != nil {
			return Result{}, err
		}
		current = media.VideoAsset{Path: copyOut}
	}

	advance(StateVerifying)
	if err = verifyOutput(current.Path); err != nil {
		return Result{}, err
	}

	// Intermediate temps are deleted; the final output is the caller's.
	for _, path := range temps {
		if path != current.Path {
			removeQuiet(path)
		}
	}

	advance(StateDone)
	return Result{OutputPath: current.Path, Frames: frames, Asset: asset}, nil
}

// runBlurPass streams the source frame-by-frame through the privacy filter
// into a fresh encode session. A bounded channel couples the decode producer
// to the encode consumer; the single blocking wait is the encoder finishing,
// bounded by the source duration.
func (c *Coordinator) runBlurPass(ctx context.Context, asset media.VideoAsset, intensity int, outputPath string) (int, error) {
	reader, err := media.OpenReader(ctx, c.ffmpegPath, asset)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	width, height := reader.FrameSize()
	writerOpts := media.WriterOptions{
		OutputPath: outputPath,
		Width:      width,
		Height:     height,
		FrameRate:  asset.EffectiveFrameRate(),
	}
	if asset.HasAudio {
		writerOpts.AudioSource = asset.Path
	}

	writer, err := media.OpenWriter(ctx, c.ffmpegPath, writerOpts)
	if err != nil {
		return 0, err
	}

	filter := privacy.NewFilter(c.detector, intensity)

	frames := make(chan *media.Frame, frameQueueDepth)
	decodeErr := make(chan error, 1)

	go func() {
		defer close(frames)
		for {
			frame, err := reader.ReadFrame()
			if err == io.EOF {
				decodeErr <- nil
				return
			}
			if err != nil {
				decodeErr <- err
				return
			}
			frames <- filter.TransformFrame(ctx, frame).Frame()
		}
	}()

	for frame := range frames {
		if err := writer.WriteFrame(frame); err != nil {
			writer.Abort()
			// Drain so the producer goroutine can exit.
			for range frames {
			}
			<-decodeErr
			return 0, err
		}
	}

	if err := <-decodeErr; err != nil {
		writer.Abort()
		return 0, err
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"source": asset.Path,
		"output": outputPath,
		"frames": writer.Frames(),
	}).Info("Blur pass complete")

	return writer.Frames(), nil
}

// tempPath returns a globally unique output path so concurrent jobs never
// collide in the shared temp namespace.
func (c *Coordinator) tempPath() string {
	return filepath.Join(c.tempDir, uuid.New().String()+".mp4")
}

// verifyOutput confirms the encoded file exists and exceeds the minimum
// size. A present-but-tiny file means the encode session lied about
// completing; that surfaces as an encode failure, not success.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: output missing: %v", media.ErrEncodeFailed, err)
	}
	if info.Size() < minOutputBytes {
		return fmt.Errorf("%w: output truncated (%d bytes)", media.ErrEncodeFailed, info.Size())
	}
	return nil
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", path).Warn("Failed to remove temp file")
	}
}
