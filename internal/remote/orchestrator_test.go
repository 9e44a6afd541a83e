package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/video-processing/internal/media"
	"github.com/bestfriendai/video-processing/internal/storage"
)

// fakeStore serves downloads from a map and records uploads. Status objects
// can be scheduled to appear only after a number of polls.
type fakeStore struct {
	objects     map[string][]byte
	uploads     map[string]string
	statusAfter int
	statusBody  []byte
	downloads   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: map[string][]byte{},
		uploads: map[string]string{},
	}
}

func (f *fakeStore) Upload(_ context.Context, localPath, remotePath string) error {
	f.uploads[remotePath] = localPath
	return nil
}

func (f *fakeStore) Download(_ context.Context, remotePath string) ([]byte, error) {
	if strings.HasPrefix(remotePath, "status/") {
		f.downloads++
		if f.statusBody != nil && f.downloads > f.statusAfter {
			return f.statusBody, nil
		}
		return nil, storage.ErrNotFound
	}
	data, ok := f.objects[remotePath]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

type fakeTrigger struct {
	req InvokeRequest
	err error
}

func (f *fakeTrigger) Invoke(_ context.Context, req InvokeRequest) error {
	f.req = req
	return f.err
}

func newTestOrchestrator(t *testing.T, store *fakeStore, trigger Trigger) *Orchestrator {
	t.Helper()
	o := New(store, trigger, t.TempDir())
	o.SetPolling(0, 5)
	o.sleep = func(context.Context, time.Duration) error { return nil }
	return o
}

func TestProcessCompletesAndDownloads(t *testing.T) {
	store := newFakeStore()
	store.statusBody = []byte(`{
		"status": "completed",
		"resultPath": "results/out.mp4",
		"transcript": "hello world",
		"thumbnailUrl": "https://cdn.example/thumb.jpg"
	}`)
	store.objects["results/out.mp4"] = []byte("encoded video bytes")
	trigger := &fakeTrigger{}
	o := newTestOrchestrator(t, store, trigger)

	src := writeTempSource(t)
	job, err := o.Process(context.Background(), src, map[string]any{"blurFaces": true})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, "hello world", job.Transcript)
	assert.Equal(t, "https://cdn.example/thumb.jpg", job.ThumbnailURL)

	saved, readErr := os.ReadFile(job.ResultPath)
	require.NoError(t, readErr)
	assert.Equal(t, []byte("encoded video bytes"), saved)

	// Upload path carries the job ID and the source extension.
	require.Len(t, store.uploads, 1)
	for remote := range store.uploads {
		assert.True(t, strings.HasPrefix(remote, "uploads/"+job.ID))
		assert.True(t, strings.HasSuffix(remote, ".mp4"))
	}

	// The trigger saw the uploaded object, not the local path.
	assert.Equal(t, job.ID, trigger.req.UploadID)
	assert.True(t, strings.HasPrefix(trigger.req.SourcePath, "uploads/"))
	assert.Equal(t, true, trigger.req.Options["blurFaces"])
}

func TestProcessServerReportedFailure(t *testing.T) {
	store := newFakeStore()
	store.statusBody = []byte(`{"status": "failed", "error": "no faces detected"}`)
	o := newTestOrchestrator(t, store, &fakeTrigger{})

	job, err := o.Process(context.Background(), writeTempSource(t), nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrProcessingFailed)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "no faces detected", job.Error)
}

func TestProcessTimesOutWhileStillProcessing(t *testing.T) {
	// Status object never appears within the polling window.
	store := newFakeStore()
	o := newTestOrchestrator(t, store, &fakeTrigger{})

	job, err := o.Process(context.Background(), writeTempSource(t), nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, media.ErrTimeout)
	assert.NotErrorIs(t, err, ErrProcessingFailed)
	// A timed-out job is still processing server-side, not failed.
	assert.Equal(t, StatusProcessing, job.Status)
	assert.Empty(t, job.ResultPath)
	assert.Equal(t, 5, store.downloads)
}

func TestProcessLateStatusCompletes(t *testing.T) {
	store := newFakeStore()
	store.statusAfter = 3
	store.statusBody = []byte(`{"status": "completed", "resultPath": "results/out.mp4"}`)
	store.objects["results/out.mp4"] = []byte("late but done")
	o := newTestOrchestrator(t, store, &fakeTrigger{})

	job, err := o.Process(context.Background(), writeTempSource(t), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 4, store.downloads)
}

func TestProcessTriggerFailure(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store, &fakeTrigger{err: errors.New("endpoint returned status 503")})

	job, err := o.Process(context.Background(), writeTempSource(t), nil)
	require.Error(t, err)

	assert.Equal(t, StatusFailed, job.Status)
	// The source was uploaded before the trigger failed.
	assert.Len(t, store.uploads, 1)
	assert.Zero(t, store.downloads)
}

func TestProcessCanceledDuringPolling(t *testing.T) {
	store := newFakeStore()
	o := New(store, &fakeTrigger{}, t.TempDir())
	o.SetPolling(time.Hour, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := o.Process(ctx, writeTempSource(t), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, job.Status)
}

func TestProcessMissingResultObject(t *testing.T) {
	store := newFakeStore()
	store.statusBody = []byte(`{"status": "completed", "resultPath": "results/gone.mp4"}`)
	o := newTestOrchestrator(t, store, &fakeTrigger{})

	job, err := o.Process(context.Background(), writeTempSource(t), nil)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, job.Status)
}

func writeTempSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	require.NoError(t, os.WriteFile(path, []byte("source bytes"), 0o644))
	return path
}
