package queue

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bestfriendai/video-processing/internal/pipeline"
	"github.com/bestfriendai/video-processing/internal/remote"
	"github.com/bestfriendai/video-processing/internal/storage"
)

// WorkerPool manages a pool of workers processing video transform jobs.
type WorkerPool struct {
	jobQueue     chan *Job
	workerCount  int
	coordinator  *pipeline.Coordinator
	orchestrator *remote.Orchestrator
	localStore   *storage.LocalStore
	db           *storage.MetadataDB
	events       *EventHub
	registry     *registry
}

// NewWorkerPool creates a worker pool. orchestrator may be nil when the
// remote path is disabled; remote jobs then fail at enqueue time.
func NewWorkerPool(
	workerCount int,
	coordinator *pipeline.Coordinator,
	orchestrator *remote.Orchestrator,
	localStore *storage.LocalStore,
	db *storage.MetadataDB,
	events *EventHub,
) *WorkerPool {
	return &WorkerPool{
		jobQueue:     make(chan *Job, 100),
		workerCount:  workerCount,
		coordinator:  coordinator,
		orchestrator: orchestrator,
		localStore:   localStore,
		db:           db,
		events:       events,
		registry:     newRegistry(),
	}
}

// Start launches all workers.
func (wp *WorkerPool) Start() {
	log.WithField("workers", wp.workerCount).Info("Starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		go wp.worker(i)
	}
}

// RemoteEnabled reports whether remote jobs can be accepted.
func (wp *WorkerPool) RemoteEnabled() bool { return wp.orchestrator != nil }

// EnqueueJob registers and queues a job.
func (wp *WorkerPool) EnqueueJob(job *Job) {
	job.Status = StatusQueued
	job.CreatedAt = time.Now()
	wp.registry.add(job)
	wp.events.Publish(StatusUpdate{JobID: job.ID, Type: "queued"})
	wp.jobQueue <- job

	log.WithFields(log.Fields{
		"job":  job.ID,
		"kind": job.Kind,
		"name": job.Name,
	}).Info("Job enqueued")
}

// Job returns a snapshot of a tracked job.
func (wp *WorkerPool) Job(id string) (Job, bool) {
	return wp.registry.snapshot(id)
}

// worker processes jobs from the queue with panic recovery, so one bad job
// never takes the worker down.
func (wp *WorkerPool) worker(id int) {
	logger := log.WithField("worker", id)
	logger.Debug("Worker started")

	for job := range wp.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.WithFields(log.Fields{
						"job":   job.ID,
						"panic": r,
					}).Errorf("Worker panic:\n%s", debug.Stack())
					wp.finishJob(job, "", "", "", fmt.Errorf("worker panic: %v", r))
				}
			}()

			wp.processJob(logger, job)
		}()
	}
}

// processJob runs one job end to end and records the outcome.
func (wp *WorkerPool) processJob(logger *log.Entry, job *Job) {
	logger = logger.WithField("job", job.ID)
	logger.Info("Processing job")

	wp.registry.update(job.ID, func(j *Job) { j.Status = StatusProcessing })
	wp.events.Publish(StatusUpdate{JobID: job.ID, Type: "stage", Stage: "processing"})

	switch job.Kind {
	case KindRemote:
		wp.processRemote(logger, job)
	default:
		wp.processLocal(logger, job)
	}
}

// processLocal runs the on-device pipeline. The coordinator executes on its
// own goroutine and signals completion through the callback; the worker
// blocks here so it handles one encode session at a time.
func (wp *WorkerPool) processLocal(logger *log.Entry, job *Job) {
	done := make(chan struct{})
	var result pipeline.Result
	var runErr error

	wp.coordinator.Run(context.Background(), job.SourcePath, job.Options, func(r pipeline.Result, err error) {
		result, runErr = r, err
		close(done)
	})
	<-done

	if runErr != nil {
		logger.WithError(runErr).Error("Local pipeline failed")
		wp.finishJob(job, "", "", "", runErr)
		return
	}

	finalPath, err := wp.localStore.SaveResult(job.Name, result.OutputPath)
	if err != nil {
		logger.WithError(err).Error("Failed to store output")
		wp.cleanupTempFile(result.OutputPath)
		wp.finishJob(job, "", "", "", err)
		return
	}

	logger.WithFields(log.Fields{
		"output": finalPath,
		"frames": result.Frames,
	}).Info("Job completed")
	wp.finishJob(job, finalPath, "", "", nil)
}

// processRemote hands the job to the remote orchestrator.
func (wp *WorkerPool) processRemote(logger *log.Entry, job *Job) {
	if wp.orchestrator == nil {
		wp.finishJob(job, "", "", "", fmt.Errorf("remote processing not configured"))
		return
	}

	options := map[string]any{
		"blurFaces":     job.Options.BlurFaces,
		"blurIntensity": job.Options.BlurIntensity,
	}

	processed, err := wp.orchestrator.Process(context.Background(), job.SourcePath, options)
	if err != nil {
		logger.WithError(err).Error("Remote job failed")
		wp.finishJob(job, "", "", "", err)
		return
	}

	logger.WithField("result", processed.ResultPath).Info("Remote job completed")
	wp.finishJob(job, processed.ResultPath, processed.Transcript, processed.ThumbnailURL, nil)
}

// finishJob records the terminal state, persists it, publishes the final
// event, and cleans up the uploaded source.
func (wp *WorkerPool) finishJob(job *Job, outputPath, transcript, thumbnail string, jobErr error) {
	now := time.Now()
	wp.registry.update(job.ID, func(j *Job) {
		j.CompletedAt = now
		j.OutputPath = outputPath
		j.Transcript = transcript
		j.Thumbnail = thumbnail
		if jobErr != nil {
			j.Status = StatusFailed
			j.Error = jobErr.Error()
		} else {
			j.Status = StatusCompleted
		}
	})

	if wp.db != nil {
		snap, _ := wp.registry.snapshot(job.ID)
		rec := storage.JobRecord{
			JobID:       snap.ID,
			Name:        snap.Name,
			Kind:        snap.Kind,
			Status:      snap.Status,
			OutputPath:  snap.OutputPath,
			Transcript:  snap.Transcript,
			Error:       snap.Error,
			CreatedAt:   snap.CreatedAt,
			CompletedAt: &now,
		}
		if err := wp.db.SaveJob(rec); err != nil {
			log.WithError(err).WithField("job", job.ID).Error("Failed to persist job record")
		}
	}

	update := StatusUpdate{JobID: job.ID, Type: "completed"}
	if jobErr != nil {
		update.Type = "failed"
		update.Message = jobErr.Error()
	}
	wp.events.Publish(update)

	wp.cleanupTempFile(job.SourcePath)
}

// cleanupTempFile removes a temporary file.
func (wp *WorkerPool) cleanupTempFile(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", filePath).Warn("Failed to cleanup temp file")
	}
}
