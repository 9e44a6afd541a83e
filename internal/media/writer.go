package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// WriterOptions configures one encode session.
type WriterOptions struct {
	OutputPath string
	Width      int
	Height     int
	FrameRate  float64
	// AudioSource, when set, names a container whose first audio track is
	// copied unmodified into the output.
	AudioSource string
}

// AssetWriter serializes a stream of transformed frames into a new encoded
// video file. One writer owns one encode session; frames are written in the
// order received and the session ends at Close.
type AssetWriter struct {
	opts   WriterOptions
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	frames int
	closed bool
}

// OpenWriter starts an encode session writing to opts.OutputPath. The caller
// owns the output file and its deletion.
func OpenWriter(ctx context.Context, ffmpegPath string, opts WriterOptions) (*AssetWriter, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = FallbackFrameRate
	}
	opts.Width = evenDim(opts.Width)
	opts.Height = evenDim(opts.Height)

	cmd := exec.CommandContext(ctx, ffmpegPath, buildWriterArgs(opts)...)
	w := &AssetWriter{opts: opts, cmd: cmd}
	cmd.Stderr = &w.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encode pipe: %v", err)
	}
	w.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start encoder: %v", err)
	}

	log.WithFields(log.Fields{
		"output": opts.OutputPath,
		"size":   fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"fps":    opts.FrameRate,
		"audio":  opts.AudioSource != "",
	}).Debug("Encode session started")

	return w, nil
}

// buildWriterArgs assembles the encode command line: raw YUV420 frames on
// stdin, optional audio copied from a second input, H.264 output.
func buildWriterArgs(opts WriterOptions) []string {
	args := []string{
		"-hide_banner",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", strconv.FormatFloat(opts.FrameRate, 'f', -1, 64),
		"-i", "-",
	}

	if opts.AudioSource != "" {
		args = append(args,
			"-i", opts.AudioSource,
			"-map", "0:v:0",
			"-map", "1:a:0?",
			"-c:a", "copy",
		)
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		opts.OutputPath,
	)
	return args
}

// WriteFrame feeds one frame to the encoder. Blocks when the encoder is not
// ready for more data, which is the backpressure side of the decode→encode
// handshake.
func (w *AssetWriter) WriteFrame(frame *Frame) error {
	if w.closed {
		return fmt.Errorf("%w: writer closed", ErrEncodeFailed)
	}
	if err := frame.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	if frame.Width != w.opts.Width || frame.Height != w.opts.Height {
		return fmt.Errorf("%w: frame is %dx%d, session expects %dx%d",
			ErrEncodeFailed, frame.Width, frame.Height, w.opts.Width, w.opts.Height)
	}

	for _, plane := range [][]byte{frame.Y, frame.U, frame.V} {
		if _, err := w.stdin.Write(plane); err != nil {
			return fmt.Errorf("%w: write to encoder: %v", ErrEncodeFailed, err)
		}
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (w *AssetWriter) Frames() int { return w.frames }

// Close signals end of stream and waits for the encoder to finish. A
// non-zero encoder exit surfaces as ErrEncodeFailed; it is never swallowed.
func (w *AssetWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.stdin != nil {
		w.stdin.Close()
	}
	if w.cmd == nil {
		return nil
	}
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: encoder exited: %v (%s)",
			ErrEncodeFailed, err, tail(w.stderr.String(), 512))
	}

	log.WithFields(log.Fields{
		"output": w.opts.OutputPath,
		"frames": w.frames,
	}).Debug("Encode session finished")
	return nil
}

// Abort kills the encode session without waiting for a clean finish. The
// partially written output remains on disk for the caller to delete.
func (w *AssetWriter) Abort() {
	w.closed = true
	if w.stdin != nil {
		w.stdin.Close()
	}
	if w.cmd != nil && w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
		_ = w.cmd.Wait()
	}
	w.cmd = nil
}
