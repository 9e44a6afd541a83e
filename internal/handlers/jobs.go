package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bestfriendai/video-processing/internal/queue"
	"github.com/bestfriendai/video-processing/internal/storage"
)

// JobsHandler serves job status and results.
type JobsHandler struct {
	workerPool *queue.WorkerPool
	db         *storage.MetadataDB
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(workerPool *queue.WorkerPool, db *storage.MetadataDB) *JobsHandler {
	return &JobsHandler{workerPool: workerPool, db: db}
}

// Get returns the current state of a job. In-flight jobs come from the
// worker pool registry, older ones from the metadata database.
func (h *JobsHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("id")

	if job, ok := h.workerPool.Job(jobID); ok {
		return c.JSON(fiber.Map{
			"job_id":      job.ID,
			"name":        job.Name,
			"kind":        job.Kind,
			"status":      job.Status,
			"error":       job.Error,
			"output_path": job.OutputPath,
			"transcript":  job.Transcript,
			"thumbnail":   job.Thumbnail,
			"created_at":  job.CreatedAt,
		})
	}

	if h.db != nil {
		if rec, err := h.db.GetJob(jobID); err == nil {
			return c.JSON(rec)
		}
	}

	return c.Status(404).JSON(fiber.Map{
		"error": "Job not found",
		"code":  "ERR_JOB_NOT_FOUND",
	})
}

// Result streams the transformed video file for a completed job.
func (h *JobsHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("id")

	outputPath := ""
	if job, ok := h.workerPool.Job(jobID); ok {
		if job.Status != queue.StatusCompleted {
			return c.Status(409).JSON(fiber.Map{
				"error": "Job not completed",
				"code":  "ERR_JOB_NOT_READY",
			})
		}
		outputPath = job.OutputPath
	} else if h.db != nil {
		if rec, err := h.db.GetJob(jobID); err == nil && rec.Status == queue.StatusCompleted {
			outputPath = rec.OutputPath
		}
	}

	if outputPath == "" {
		return c.Status(404).JSON(fiber.Map{
			"error": "Result not found",
			"code":  "ERR_RESULT_NOT_FOUND",
		})
	}
	return c.SendFile(outputPath)
}

// List returns recent job records.
func (h *JobsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	records, err := h.db.ListJobs(limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if records == nil {
		records = []storage.JobRecord{}
	}
	return c.JSON(records)
}
