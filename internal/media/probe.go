package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Prober opens video files and reads their stream metadata via ffprobe.
type Prober struct {
	ffprobePath string
	runner      Runner
}

// NewProber creates a prober using the given ffprobe binary.
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath, runner: ExecRunner{}}
}

// NewProberWithRunner creates a prober with an injected command runner.
func NewProberWithRunner(ffprobePath string, runner Runner) *Prober {
	p := NewProber(ffprobePath)
	p.runner = runner
	return p
}

// probeOutput matches ffprobe's -print_format json output.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Tags         struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideDataList []struct {
		Rotation int `json:"rotation"`
	} `json:"side_data_list"`
}

// Probe opens a source video and returns its immutable description.
// Returns ErrNoVideoTrack when no decodable video stream exists.
func (p *Prober) Probe(ctx context.Context, path string) (VideoAsset, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	out, err := p.runner.Run(ctx, p.ffprobePath, args...)
	if err != nil {
		return VideoAsset{}, fmt.Errorf("probe %s: %v", path, err)
	}

	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return VideoAsset{}, fmt.Errorf("probe %s: unparseable ffprobe output: %v", path, err)
	}

	asset := VideoAsset{Path: path}
	var video *probeStream
	for i := range probed.Streams {
		switch probed.Streams[i].CodecType {
		case "video":
			if video == nil {
				video = &probed.Streams[i]
			}
		case "audio":
			asset.HasAudio = true
		}
	}
	if video == nil || video.Width <= 0 || video.Height <= 0 {
		return VideoAsset{}, fmt.Errorf("probe %s: %w", path, ErrNoVideoTrack)
	}

	asset.Width = video.Width
	asset.Height = video.Height
	asset.FrameRate = parseFrameRate(video.RFrameRate)
	if asset.FrameRate <= 0 {
		asset.FrameRate = parseFrameRate(video.AvgFrameRate)
	}
	asset.Rotation = parseRotation(video)
	asset.Duration, _ = strconv.ParseFloat(probed.Format.Duration, 64)

	log.WithFields(log.Fields{
		"path":     path,
		"size":     fmt.Sprintf("%dx%d", asset.Width, asset.Height),
		"rotation": asset.Rotation,
		"fps":      asset.FrameRate,
		"duration": asset.Duration,
		"audio":    asset.HasAudio,
	}).Debug("Probed source video")

	return asset, nil
}

// parseFrameRate converts ffprobe's rational rate ("30000/1001") to a float.
func parseFrameRate(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0/0" {
		return 0
	}

	if num, den, ok := strings.Cut(raw, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseRotation extracts the orientation transform from display-matrix side
// data or the legacy rotate tag, normalized to 0/90/180/270.
func parseRotation(s *probeStream) int {
	rotation := 0
	if len(s.SideDataList) > 0 {
		rotation = s.SideDataList[0].Rotation
	} else if s.Tags.Rotate != "" {
		r, err := strconv.Atoi(s.Tags.Rotate)
		if err == nil {
			rotation = r
		}
	}

	rotation %= 360
	if rotation < 0 {
		rotation += 360
	}
	return rotation
}
