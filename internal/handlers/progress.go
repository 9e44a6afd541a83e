package handlers

import (
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"

	"github.com/bestfriendai/video-processing/internal/queue"
)

// ProgressHandler streams job progress events over WebSocket.
type ProgressHandler struct {
	workerPool *queue.WorkerPool
	events     *queue.EventHub
}

// NewProgressHandler creates a progress handler.
func NewProgressHandler(workerPool *queue.WorkerPool, events *queue.EventHub) *ProgressHandler {
	return &ProgressHandler{workerPool: workerPool, events: events}
}

// Handle subscribes the connection to one job's events and forwards them
// until the job reaches a terminal state or the client disconnects.
func (h *ProgressHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	jobID := c.Params("id")
	if _, ok := h.workerPool.Job(jobID); !ok {
		c.WriteJSON(map[string]string{"error": "job not found"})
		return
	}

	updates, cancel := h.events.Subscribe(jobID)
	defer cancel()

	log.WithField("job", jobID).Debug("Progress subscriber connected")

	// If the job already finished, report the terminal state immediately;
	// its events were published before this subscription existed.
	if job, ok := h.workerPool.Job(jobID); ok {
		if job.Status == queue.StatusCompleted || job.Status == queue.StatusFailed {
			c.WriteJSON(queue.StatusUpdate{
				JobID:   jobID,
				Type:    terminalType(job.Status),
				Message: job.Error,
			})
			return
		}
	}

	for update := range updates {
		if err := c.WriteJSON(update); err != nil {
			log.WithError(err).Debug("Progress subscriber write failed")
			return
		}
		if update.Type == "completed" || update.Type == "failed" {
			return
		}
	}
}

func terminalType(status string) string {
	if status == queue.StatusFailed {
		return "failed"
	}
	return "completed"
}
