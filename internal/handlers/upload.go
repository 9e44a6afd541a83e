package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bestfriendai/video-processing/internal/media"
	"github.com/bestfriendai/video-processing/internal/pipeline"
	"github.com/bestfriendai/video-processing/internal/queue"
)

// UploadHandler accepts a video plus processing options and enqueues a
// transform job.
type UploadHandler struct {
	workerPool *queue.WorkerPool
	tempDir    string
	maxSizeMB  int
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(workerPool *queue.WorkerPool, tempDir string, maxSizeMB int) *UploadHandler {
	return &UploadHandler{
		workerPool: workerPool,
		tempDir:    tempDir,
		maxSizeMB:  maxSizeMB,
	}
}

// Handle processes the job creation request. Caption JSON is parsed and
// validated here, before any file lands in the queue: bad input fails the
// request, not a worker.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("video")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "No video uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	name := c.FormValue("name")
	if name == "" {
		name = "untitled"
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	if !validVideoFormat(file.Filename) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Unsupported video format",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	opts, err := parseOptions(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_OPTIONS",
		})
	}

	kind := queue.KindLocal
	if c.FormValue("mode") == "remote" {
		if !h.workerPool.RemoteEnabled() {
			return c.Status(400).JSON(fiber.Map{
				"error": "Remote processing not configured",
				"code":  "ERR_REMOTE_DISABLED",
			})
		}
		kind = queue.KindRemote
	}

	jobID := uuid.New().String()
	tempPath := filepath.Join(h.tempDir, jobID+filepath.Ext(file.Filename))

	if err := c.SaveFile(file, tempPath); err != nil {
		log.WithError(err).Error("Failed to save uploaded file")
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to save file",
			"code":  "ERR_SAVE_FAILED",
		})
	}

	if opts.Watermark.ImagePath != "" {
		// Watermark logos arrive as a second multipart file, saved beside
		// the video. A logo that cannot be saved fails the request; the job
		// must never run with an unresolved image path.
		logoPath, err := h.saveLogo(c, jobID)
		if err != nil {
			log.WithError(err).Error("Failed to save watermark image")
			os.Remove(tempPath)
			return c.Status(500).JSON(fiber.Map{
				"error": "Failed to save watermark image",
				"code":  "ERR_SAVE_FAILED",
			})
		}
		opts.Watermark.ImagePath = logoPath
	}

	job := queue.NewJob(jobID, name, kind, tempPath, opts)
	h.workerPool.EnqueueJob(job)

	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"status":  "queued",
		"message": "Video uploaded, processing started",
	})
}

// saveLogo stores the watermark image beside the uploaded video.
func (h *UploadHandler) saveLogo(c *fiber.Ctx, jobID string) (string, error) {
	logo, err := c.FormFile("watermarkImage")
	if err != nil {
		return "", err
	}
	logoPath := filepath.Join(h.tempDir, jobID+"_wm"+filepath.Ext(logo.Filename))
	if err := c.SaveFile(logo, logoPath); err != nil {
		return "", err
	}
	return logoPath, nil
}

// parseOptions reads the transform options off the multipart form.
func parseOptions(c *fiber.Ctx) (pipeline.Options, error) {
	var opts pipeline.Options

	if raw := c.FormValue("blurIntensity"); raw != "" {
		intensity, err := strconv.Atoi(raw)
		if err != nil || intensity < 0 || intensity > 100 {
			return opts, fmt.Errorf("blurIntensity must be an integer 0-100")
		}
		opts.BlurFaces = true
		opts.BlurIntensity = intensity
	}

	if raw := c.FormValue("captions"); raw != "" {
		segments, err := media.ParseSegments([]byte(raw))
		if err != nil {
			return opts, err
		}
		opts.Segments = segments
	}

	opts.Watermark.Text = c.FormValue("watermarkText")
	if _, err := c.FormFile("watermarkImage"); err == nil {
		// Real path assigned after the file is saved; a non-empty marker
		// lets Handle know a logo is expected.
		opts.Watermark.ImagePath = "pending"
	}

	if !opts.BlurFaces && len(opts.Segments) == 0 && opts.Watermark.Empty() {
		return opts, fmt.Errorf("no transform requested: set blurIntensity, captions, or a watermark")
	}
	return opts, nil
}

// validVideoFormat checks the upload extension against supported containers.
func validVideoFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range []string{".mp4", ".mov", ".m4v", ".webm", ".mkv", ".avi"} {
		if ext == supported {
			return true
		}
	}
	return false
}
