package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPTrigger invokes the remote compute endpoint with a JSON request. The
// endpoint accepts the work and writes its status object asynchronously.
type HTTPTrigger struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTrigger creates a trigger client for the given endpoint.
func NewHTTPTrigger(endpoint string) *HTTPTrigger {
	return &HTTPTrigger{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Invoke posts the transform request.
func (t *HTTPTrigger) Invoke(ctx context.Context, req InvokeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode invoke request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("invoke request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote transform endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
