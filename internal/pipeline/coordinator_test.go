package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/video-processing/internal/media"
	"github.com/bestfriendai/video-processing/internal/overlay"
)

// stubRunner fakes the external encode/probe commands. Probe calls return
// the canned JSON; render calls write a plausible output file at the last
// argument so verification passes.
type stubRunner struct {
	probeOutput []byte
	probeErr    error
	renderErr   error
	renderCalls int
	renderArgs  []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	if name == "ffprobe" {
		return s.probeOutput, s.probeErr
	}
	s.renderCalls++
	s.renderArgs = args
	if s.renderErr != nil {
		return nil, s.renderErr
	}
	out := args[len(args)-1]
	return nil, os.WriteFile(out, bytes.Repeat([]byte{0}, 2048), 0o644)
}

func probeJSON() []byte {
	return []byte(`{
		"streams": [{"codec_type": "video", "width": 640, "height": 480, "r_frame_rate": "30/1"}],
		"format": {"duration": "2.0"}
	}`)
}

func newTestCoordinator(t *testing.T, runner *stubRunner) (*Coordinator, *[]State) {
	t.Helper()
	c := New("ffmpeg", "",
		media.NewProberWithRunner("ffprobe", runner),
		overlay.NewRendererWithRunner("ffmpeg", runner),
		nil,
		t.TempDir())

	var stages []State
	c.OnStage(func(s State) { stages = append(stages, s) })
	return c, &stages
}

func TestValidTransitions(t *testing.T) {
	allowed := [][2]State{
		{StateIdle, StateReading},
		{StateIdle, StateFailed},
		{StateReading, StateTransforming},
		{StateReading, StateWriting},
		{StateTransforming, StateWriting},
		{StateWriting, StateVerifying},
		{StateWriting, StateTransforming},
		{StateVerifying, StateDone},
		{StateVerifying, StateFailed},
	}
	for _, edge := range allowed {
		assert.True(t, validTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}

	denied := [][2]State{
		{StateIdle, StateDone},
		{StateReading, StateDone},
		{StateTransforming, StateReading},
		{StateDone, StateReading},
		{StateFailed, StateReading},
		{StateVerifying, StateWriting},
	}
	for _, edge := range denied {
		assert.False(t, validTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestVerifyOutput(t *testing.T) {
	dir := t.TempDir()

	err := verifyOutput(filepath.Join(dir, "missing.mp4"))
	assert.ErrorIs(t, err, media.ErrEncodeFailed)

	tiny := filepath.Join(dir, "tiny.mp4")
	require.NoError(t, os.WriteFile(tiny, []byte("stub"), 0o644))
	err = verifyOutput(tiny)
	assert.ErrorIs(t, err, media.ErrEncodeFailed)

	ok := filepath.Join(dir, "ok.mp4")
	require.NoError(t, os.WriteFile(ok, bytes.Repeat([]byte{1}, minOutputBytes), 0o644))
	assert.NoError(t, verifyOutput(ok))
}

func TestTempPathUnique(t *testing.T) {
	c := New("ffmpeg", "", nil, nil, nil, t.TempDir())

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		p := c.tempPath()
		assert.False(t, seen[p])
		seen[p] = true
	}
}

func TestBlurWithoutDetectorFails(t *testing.T) {
	c, stages := newTestCoordinator(t, &stubRunner{probeOutput: probeJSON()})

	_, err := c.RunSync(context.Background(), "in.mp4", Options{BlurFaces: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrDetectionUnavailable)
	assert.Equal(t, []State{StateFailed}, *stages)
}

func TestProbeFailurePropagates(t *testing.T) {
	runner := &stubRunner{probeErr: errors.New("exit status 1")}
	c, stages := newTestCoordinator(t, runner)

	_, err := c.RunSync(context.Background(), "in.mp4", Options{
		Segments: []media.CaptionSegment{{Text: "x", EndTime: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, []State{StateReading, StateFailed}, *stages)
}

func TestOverlayOnlyJobSucceeds(t *testing.T) {
	runner := &stubRunner{probeOutput: probeJSON()}
	c, stages := newTestCoordinator(t, runner)

	result, err := c.RunSync(context.Background(), "in.mp4", Options{
		Segments: []media.CaptionSegment{{Text: "hello", StartTime: 0, EndTime: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, runner.renderCalls)
	assert.FileExists(t, result.OutputPath)
	assert.Equal(t, 640, result.Asset.Width)
	assert.Equal(t, []State{
		StateReading, StateTransforming, StateWriting, StateVerifying, StateDone,
	}, *stages)
}

func TestNoStageSelectedExportsCopy(t *testing.T) {
	runner := &stubRunner{probeOutput: probeJSON()}
	c, stages := newTestCoordinator(t, runner)

	result, err := c.RunSync(context.Background(), "in.mp4", Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, runner.renderCalls)
	assert.FileExists(t, result.OutputPath)
	assert.Equal(t, []State{
		StateReading, StateWriting, StateVerifying, StateDone,
	}, *stages)
}

// noFaceDetector reports no regions on every frame.
type noFaceDetector struct{}

func (noFaceDetector) Detect(context.Context, *media.Frame) ([]media.FaceRegion, error) {
	return nil, nil
}

// writeFakeFFmpeg stands in for the decode and encode subprocesses. Decode
// invocations (output "-") emit two raw 640x480 YUV420 frames on stdout;
// encode invocations drain stdin and write a plausible output file at the
// last argument.
func writeFakeFFmpeg(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
for a in "$@"; do last="$a"; done
if [ "$last" = "-" ]; then
  dd if=/dev/zero bs=460800 count=2 2>/dev/null
else
  cat >/dev/null
  dd if=/dev/zero of="$last" bs=2048 count=1 2>/dev/null
fi
`
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestBlurOnlyJobReturnsBlurredOutput(t *testing.T) {
	runner := &stubRunner{probeOutput: probeJSON()}
	ffmpeg := writeFakeFFmpeg(t)
	tempDir := t.TempDir()
	c := New(ffmpeg, "",
		media.NewProberWithRunner("ffprobe", runner),
		overlay.NewRendererWithRunner(ffmpeg, runner),
		noFaceDetector{},
		tempDir)

	var stages []State
	c.OnStage(func(s State) { stages = append(stages, s) })

	result, err := c.RunSync(context.Background(), "in.mp4", Options{
		BlurFaces:     true,
		BlurIntensity: 50,
	})
	require.NoError(t, err)

	// The job hands back the blurred temp file, never the source.
	assert.NotEqual(t, "in.mp4", result.OutputPath)
	assert.Equal(t, tempDir, filepath.Dir(result.OutputPath))
	assert.FileExists(t, result.OutputPath)
	assert.Equal(t, 2, result.Frames)
	assert.Zero(t, runner.renderCalls)
	assert.Equal(t, []State{
		StateReading, StateTransforming, StateWriting, StateVerifying, StateDone,
	}, stages)
}

func TestFontFileReachesRenderPass(t *testing.T) {
	runner := &stubRunner{probeOutput: probeJSON()}
	c := New("ffmpeg", "/fonts/Brand.ttf",
		media.NewProberWithRunner("ffprobe", runner),
		overlay.NewRendererWithRunner("ffmpeg", runner),
		nil,
		t.TempDir())

	_, err := c.RunSync(context.Background(), "in.mp4", Options{
		Watermark: media.WatermarkSpec{Text: "anon"},
	})
	require.NoError(t, err)
	assert.Contains(t, strings.Join(runner.renderArgs, " "), "fontfile='/fonts/Brand.ttf'")
}

func TestRenderFailureCleansTemps(t *testing.T) {
	runner := &stubRunner{probeOutput: probeJSON(), renderErr: errors.New("exit status 1")}
	c, stages := newTestCoordinator(t, runner)
	tempDir := c.tempDir

	_, err := c.RunSync(context.Background(), "in.mp4", Options{
		Watermark: media.WatermarkSpec{Text: "anon"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrEncodeFailed)
	assert.Equal(t, StateFailed, (*stages)[len(*stages)-1])

	entries, readErr := os.ReadDir(tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRunDeliversResultAsync(t *testing.T) {
	runner := &stubRunner{probeOutput: probeJSON()}
	c, _ := newTestCoordinator(t, runner)

	done := make(chan error, 1)
	c.Run(context.Background(), "in.mp4", Options{
		Watermark: media.WatermarkSpec{Text: "anon"},
	}, func(_ Result, err error) {
		done <- err
	})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not complete")
	}
}
