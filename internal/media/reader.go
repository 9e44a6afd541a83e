package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// AssetReader exposes a source video as a finite sequence of decoded YUV420
// frames. Frames come off a decode subprocess pipe in presentation order;
// consuming them advances an internal cursor and the stream is not
// restartable. Re-reading requires opening a new reader.
//
// Decode applies the source's orientation transform, so frames arrive
// upright at the asset's render size.
type AssetReader struct {
	asset  VideoAsset
	width  int
	height int

	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr bytes.Buffer

	frameIndex int
	done       bool
}

// OpenReader starts a decode session for the asset.
func OpenReader(ctx context.Context, ffmpegPath string, asset VideoAsset) (*AssetReader, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	width, height := asset.RenderSize()

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-i", asset.Path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-vf", fmt.Sprintf("scale=%d:%d", evenDim(width), evenDim(height)),
		"-",
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	r := &AssetReader{
		asset:  asset,
		width:  evenDim(width),
		height: evenDim(height),
		cmd:    cmd,
	}
	cmd.Stderr = &r.stderr

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decode pipe: %v", err)
	}
	r.out = out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decoder: %v", err)
	}

	log.WithFields(log.Fields{
		"path": asset.Path,
		"size": fmt.Sprintf("%dx%d", r.width, r.height),
	}).Debug("Decode session started")

	return r, nil
}

// Asset returns the source description this reader decodes.
func (r *AssetReader) Asset() VideoAsset { return r.asset }

// FrameSize returns the dimensions of the frames this reader produces.
func (r *AssetReader) FrameSize() (width, height int) { return r.width, r.height }

// ReadFrame returns the next frame in presentation order. io.EOF marks the
// end of the stream; any other error is fatal for the session.
func (r *AssetReader) ReadFrame() (*Frame, error) {
	if r.done {
		return nil, io.EOF
	}

	frame := NewFrame(r.width, r.height)
	if err := r.readPlane(frame.Y); err != nil {
		if err == io.EOF {
			r.done = true
			return nil, r.finish()
		}
		return nil, fmt.Errorf("read frame %d: %v", r.frameIndex, err)
	}
	for _, plane := range [][]byte{frame.U, frame.V} {
		if err := r.readPlane(plane); err != nil {
			return nil, fmt.Errorf("truncated frame %d: %v", r.frameIndex, err)
		}
	}

	frame.PTS = float64(r.frameIndex) / r.asset.EffectiveFrameRate()
	r.frameIndex++
	return frame, nil
}

// readPlane fills one plane buffer from the pipe.
func (r *AssetReader) readPlane(buf []byte) error {
	_, err := io.ReadFull(r.out, buf)
	return err
}

// finish reaps the decode process after a clean end of stream and returns
// io.EOF, or the decoder's failure if it exited non-zero.
func (r *AssetReader) finish() error {
	if r.cmd == nil {
		return io.EOF
	}
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("decoder exited: %v (%s)", err, tail(r.stderr.String(), 512))
	}
	r.cmd = nil
	return io.EOF
}

// Close releases the decode session. Safe to call after EOF.
func (r *AssetReader) Close() error {
	r.done = true
	if r.out != nil {
		r.out.Close()
	}
	if r.cmd != nil {
		err := r.cmd.Wait()
		r.cmd = nil
		// A decoder killed mid-stream reports a pipe error; that is the
		// expected shutdown path, not a decode failure.
		if err != nil {
			log.WithError(err).Debug("Decoder closed before end of stream")
		}
	}
	return nil
}

// evenDim rounds a dimension down to the nearest even value, required by
// 4:2:0 chroma subsampling.
func evenDim(d int) int { return d &^ 1 }
