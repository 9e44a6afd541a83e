// Package remote mirrors the local pipeline through a server-side path:
// upload the source to object storage, trigger the remote transform, poll
// the status object until it resolves, then download the result.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bestfriendai/video-processing/internal/media"
	"github.com/bestfriendai/video-processing/internal/storage"
)

// ErrProcessingFailed is an explicit server-reported failure. It is never
// conflated with media.ErrTimeout: a timed-out job may still complete
// server-side after the caller gives up.
var ErrProcessingFailed = errors.New("remote processing failed")

// Polling defaults: 5s interval, 60 attempts, a 5-minute ceiling.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 60
)

// Status is a ProcessingJob lifecycle state.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ProcessingJob tracks one server-side transform. It is written only by the
// orchestrator's polling loop and read by the caller after Process returns.
type ProcessingJob struct {
	ID           string
	Status       Status
	SourcePath   string
	ResultPath   string
	Transcript   string
	ThumbnailURL string
	Error        string
}

// InvokeRequest is the payload the remote compute trigger accepts.
type InvokeRequest struct {
	UploadID   string         `json:"uploadId"`
	SourcePath string         `json:"sourcePath"`
	Options    map[string]any `json:"options,omitempty"`
}

// Trigger starts the server-side transform for an uploaded source.
type Trigger interface {
	Invoke(ctx context.Context, req InvokeRequest) error
}

// statusObject is the JSON document the server writes for each upload ID.
type statusObject struct {
	Status       string `json:"status"`
	ResultPath   string `json:"resultPath,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Orchestrator drives the upload → invoke → poll → download sequence.
type Orchestrator struct {
	store        storage.ObjectStore
	trigger      Trigger
	downloadDir  string
	pollInterval time.Duration
	maxPolls     int
	sleep        func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator with the default polling bounds.
func New(store storage.ObjectStore, trigger Trigger, downloadDir string) *Orchestrator {
	return &Orchestrator{
		store:        store,
		trigger:      trigger,
		downloadDir:  downloadDir,
		pollInterval: DefaultPollInterval,
		maxPolls:     DefaultMaxPolls,
		sleep:        sleepCtx,
	}
}

// SetPolling overrides the poll interval and attempt ceiling.
func (o *Orchestrator) SetPolling(interval time.Duration, maxPolls int) {
	o.pollInterval = interval
	o.maxPolls = maxPolls
}

// Process uploads the source, triggers the server-side transform, and polls
// until the job completes, fails, or the attempt ceiling elapses. On
// completion the result is downloaded next to downloadDir and the job
// carries its local path plus transcript/thumbnail metadata. The
// orchestrator never falls back to local processing; that decision belongs
// to the caller.
func (o *Orchestrator) Process(ctx context.Context, sourcePath string, options map[string]any) (*ProcessingJob, error) {
	job := &ProcessingJob{
		ID:         uuid.New().String(),
		Status:     StatusUploading,
		SourcePath: sourcePath,
	}
	logger := log.WithField("job", job.ID)

	remoteSource := "uploads/" + job.ID + filepath.Ext(sourcePath)
	if err := o.store.Upload(ctx, sourcePath, remoteSource); err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		return job, fmt.Errorf("upload source: %v", err)
	}
	logger.WithField("remote", remoteSource).Info("Source uploaded")

	if err := o.trigger.Invoke(ctx, InvokeRequest{
		UploadID:   job.ID,
		SourcePath: remoteSource,
		Options:    options,
	}); err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		return job, fmt.Errorf("invoke remote transform: %v", err)
	}
	job.Status = StatusProcessing

	statusPath := "status/" + job.ID + ".json"
	for attempt := 1; attempt <= o.maxPolls; attempt++ {
		if err := o.sleep(ctx, o.pollInterval); err != nil {
			job.Status = StatusFailed
			job.Error = err.Error()
			return job, err
		}

		data, err := o.store.Download(ctx, statusPath)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// The status write is eventually consistent; a missing
				// object means the job is still processing.
				continue
			}
			logger.WithError(err).Warn("Status poll failed, retrying")
			continue
		}

		var status statusObject
		if err := json.Unmarshal(data, &status); err != nil {
			logger.WithError(err).Warn("Unparseable status object, retrying")
			continue
		}

		switch status.Status {
		case string(StatusCompleted):
			return o.complete(ctx, job, status)
		case string(StatusFailed):
			job.Status = StatusFailed
			job.Error = status.Error
			return job, fmt.Errorf("%w: %s", ErrProcessingFailed, status.Error)
		default:
			// Still processing.
		}
	}

	// The ceiling elapsed with no terminal status. Leave the job marked
	// processing: the server may yet finish it.
	job.Error = "no result within polling window"
	return job, fmt.Errorf("remote job %s: %w", job.ID, media.ErrTimeout)
}

// complete downloads the finished result and fills in job metadata.
func (o *Orchestrator) complete(ctx context.Context, job *ProcessingJob, status statusObject) (*ProcessingJob, error) {
	data, err := o.store.Download(ctx, status.ResultPath)
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		return job, fmt.Errorf("download result: %v", err)
	}

	localPath := filepath.Join(o.downloadDir, job.ID+filepath.Ext(status.ResultPath))
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		return job, fmt.Errorf("save result: %v", err)
	}

	job.Status = StatusCompleted
	job.ResultPath = localPath
	job.Transcript = status.Transcript
	job.ThumbnailURL = status.ThumbnailURL

	log.WithFields(log.Fields{
		"job":    job.ID,
		"result": localPath,
	}).Info("Remote job completed")
	return job, nil
}

// sleepCtx waits for d or context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
