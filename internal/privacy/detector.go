package privacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/bestfriendai/video-processing/internal/media"
)

// Detector locates face regions on a single frame. Detection itself is an
// external collaborator; implementations wrap whatever service is deployed.
type Detector interface {
	Detect(ctx context.Context, frame *media.Frame) ([]media.FaceRegion, error)
}

// HTTPDetector calls a face-detection service over HTTP, posting each frame
// as a JPEG and receiving normalized bounding boxes.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
	quality  int
}

// NewHTTPDetector creates a detector client for the given endpoint.
func NewHTTPDetector(endpoint string) *HTTPDetector {
	return &HTTPDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		quality:  80,
	}
}

// Detect posts the frame and parses the region list response.
func (d *HTTPDetector) Detect(ctx context.Context, frame *media.Frame) ([]media.FaceRegion, error) {
	var body bytes.Buffer
	if err := jpeg.Encode(&body, frame.Image(), &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection service returned status %d", resp.StatusCode)
	}

	var result struct {
		Faces []media.FaceRegion `json:"faces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("invalid detection response: %v", err)
	}
	return result.Faces, nil
}
