package cleanup

import (
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler periodically removes stale temporary files. Jobs clean up after
// themselves on every exit path; the sweeper catches files orphaned by
// crashes and kills.
type Scheduler struct {
	tempDir         string
	intervalMinutes int
	maxAgeHours     int
	stopChan        chan struct{}
}

// NewScheduler creates a cleanup scheduler.
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int) *Scheduler {
	return &Scheduler{
		tempDir:         tempDir,
		intervalMinutes: intervalMinutes,
		maxAgeHours:     maxAgeHours,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the sweep loop, running one sweep immediately.
func (s *Scheduler) Start() {
	s.sweep()

	ticker := time.NewTicker(time.Duration(s.intervalMinutes) * time.Minute)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.WithFields(log.Fields{
		"interval": s.intervalMinutes,
		"maxAge":   s.maxAgeHours,
	}).Info("Cleanup scheduler started")
}

// Stop halts the sweep loop.
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// sweep removes files older than maxAgeHours from the temp directory.
func (s *Scheduler) sweep() {
	now := time.Now()
	maxAge := time.Duration(s.maxAgeHours) * time.Hour

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		if now.Sub(info.ModTime()) > maxAge {
			size := info.Size()
			if err := os.Remove(path); err != nil {
				log.WithError(err).WithField("path", path).Warn("Failed to delete stale temp file")
			} else {
				deletedCount++
				deletedSize += size
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("Temp sweep failed")
	}

	if deletedCount > 0 {
		log.WithFields(log.Fields{
			"files":   deletedCount,
			"freedMB": float64(deletedSize) / (1024 * 1024),
		}).Info("Temp sweep complete")
	}
}

// EnsureTempDirExists creates the temp directory if it doesn't exist.
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
