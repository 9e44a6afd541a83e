package media

import (
	"encoding/json"
	"fmt"
)

// CaptionWord is a single transcribed word with its display window.
type CaptionWord struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence,omitempty"`
	IsComplete bool    `json:"isComplete,omitempty"`
}

// CaptionSegment is an ordered group of words displayed together as one
// caption unit. Segments come from the upstream transcription service and
// are consumed read-only. Non-overlap of display windows is the upstream
// segmenter's responsibility and is not validated here; overlapping
// segments render as stacked layers.
type CaptionSegment struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	StartTime  float64       `json:"startTime"`
	EndTime    float64       `json:"endTime"`
	IsComplete bool          `json:"isComplete"`
	Words      []CaptionWord `json:"words"`
}

// WatermarkSpec describes an optional burned-in watermark: a logo image
// and/or a text line anchored top-right for the full video duration.
type WatermarkSpec struct {
	ImagePath string `json:"imagePath,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Empty reports whether the watermark carries nothing to composite.
func (w WatermarkSpec) Empty() bool {
	return w.ImagePath == "" && w.Text == ""
}

// ParseSegments decodes a JSON caption segment array and validates its
// timing. Unparseable JSON or a negative-duration window is rejected up
// front, before any pipeline work begins.
func ParseSegments(data []byte) ([]CaptionSegment, error) {
	var segments []CaptionSegment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("invalid caption JSON: %v", err)
	}

	for i, seg := range segments {
		if seg.StartTime > seg.EndTime {
			return nil, fmt.Errorf("segment %d (%q): startTime %.3f after endTime %.3f",
				i, seg.ID, seg.StartTime, seg.EndTime)
		}
		for j, w := range seg.Words {
			if w.StartTime > w.EndTime {
				return nil, fmt.Errorf("segment %d word %d (%q): startTime %.3f after endTime %.3f",
					i, j, w.Word, w.StartTime, w.EndTime)
			}
		}
	}

	return segments, nil
}
