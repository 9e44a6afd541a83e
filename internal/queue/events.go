package queue

import (
	"sync"
	"time"
)

// StatusUpdate is one progress event for a job, delivered to WebSocket
// subscribers.
type StatusUpdate struct {
	JobID     string `json:"jobId"`
	Type      string `json:"type"` // queued, stage, completed, failed
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// EventHub fans job progress events out to per-job subscribers. Slow
// subscribers drop events rather than blocking the worker.
type EventHub struct {
	mu   sync.Mutex
	subs map[string][]chan StatusUpdate
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[string][]chan StatusUpdate)}
}

// Subscribe registers for a job's events. The returned cancel function
// removes the subscription and closes the channel.
func (h *EventHub) Subscribe(jobID string) (<-chan StatusUpdate, func()) {
	ch := make(chan StatusUpdate, 16)

	h.mu.Lock()
	h.subs[jobID] = append(h.subs[jobID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		chans := h.subs[jobID]
		for i, c := range chans {
			if c == ch {
				h.subs[jobID] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
		if len(h.subs[jobID]) == 0 {
			delete(h.subs, jobID)
		}
	}
	return ch, cancel
}

// Publish delivers an event to the job's subscribers.
func (h *EventHub) Publish(update StatusUpdate) {
	if update.Timestamp == 0 {
		update.Timestamp = time.Now().Unix()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[update.JobID] {
		select {
		case ch <- update:
		default:
		}
	}
}
