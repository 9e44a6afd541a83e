package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "stale.mp4")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().Add(-13 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(dir, "fresh.mp4")
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o644))

	s := NewScheduler(dir, 30, 12)
	s.sweep()

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestSweepLeavesDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	stale := filepath.Join(sub, "stale.mp4")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().Add(-24 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(sub, old, old))

	s := NewScheduler(dir, 30, 12)
	s.sweep()

	assert.NoFileExists(t, stale)
	assert.DirExists(t, sub)
}

func TestSweepMissingDirIsHarmless(t *testing.T) {
	s := NewScheduler(filepath.Join(t.TempDir(), "absent"), 30, 12)
	s.sweep()
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(t.TempDir(), 30, 12)
	s.Start()
	s.Stop()
}

func TestEnsureTempDirExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureTempDirExists(dir))
	assert.DirExists(t, dir)

	// Idempotent.
	require.NoError(t, EnsureTempDirExists(dir))
}
