package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoflow-app/photoflow/internal/jobs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestRunner(t *testing.T, store jobs.Store, registry *jobs.Registry) *Runner {
	t.Helper()
	return New(&Config{
		Logger:       testLogger(),
		Store:        store,
		Registry:     registry,
		WorkerID:     "test-worker",
		BatchSize:    10,
		PollInterval: 10 * time.Millisecond,
		LeaseTimeout: jobs.DefaultLeaseTimeout,
	})
}

func TestRunBatch_ProcessesAllPending(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore(3)

	var (
		mu      sync.Mutex
		handled []string
	)
	registry := jobs.NewRegistry()
	registry.Register(jobs.TypeThumbnailGeneration, jobs.HandlerFunc(func(ctx context.Context, payload jobs.Payload, jobID string) error {
		p, ok := payload.(*jobs.ThumbnailGeneration)
		require.True(t, ok)
		mu.Lock()
		handled = append(handled, p.ImageID)
		mu.Unlock()
		return nil
	}))

	for _, imageID := range []string{"img-1", "img-2", "img-3"} {
		_, err := store.Enqueue(ctx, &jobs.ThumbnailGeneration{ImageID: imageID, OriginalPath: "temp/" + imageID})
		require.NoError(t, err)
	}

	runner := newTestRunner(t, store, registry)
	summary := runner.RunBatch(ctx)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Errors)
	assert.ElementsMatch(t, []string{"img-1", "img-2", "img-3"}, handled)
}

func TestRunBatch_HandlerErrorRetriesThenTerminal(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore(2)

	registry := jobs.NewRegistry()
	registry.Register(jobs.TypeExifEnrichment, jobs.HandlerFunc(func(ctx context.Context, payload jobs.Payload, jobID string) error {
		return errors.New("decode failed")
	}))

	job, err := store.Enqueue(ctx, &jobs.ExifEnrichment{ImageID: "img-1", OriginalPath: "temp/img-1"})
	require.NoError(t, err)

	runner := newTestRunner(t, store, registry)

	// First attempt: back to PENDING with the error recorded.
	summary := runner.RunBatch(ctx)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "decode failed")

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "decode failed", got.LastError.String)

	// Second attempt exhausts the budget.
	summary = runner.RunBatch(ctx)
	assert.Equal(t, 1, summary.Failed)

	got, err = store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)

	// Terminal jobs are no longer fetched.
	summary = runner.RunBatch(ctx)
	assert.Equal(t, 0, summary.Total)
}

func TestRunBatch_NoHandlerCountsAttempt(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore(3)
	registry := jobs.NewRegistry()

	job, err := store.Enqueue(ctx, &jobs.FaceDetection{ImageID: "img-1"})
	require.NoError(t, err)

	runner := newTestRunner(t, store, registry)
	summary := runner.RunBatch(ctx)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Failed)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.LastError.String, "no handler registered")
}

func TestRunBatch_InvalidPayloadFailsJob(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore(1)

	registry := jobs.NewRegistry()
	registry.Register(jobs.TypeFaceGrouping, jobs.HandlerFunc(func(ctx context.Context, payload jobs.Payload, jobID string) error {
		t.Fatal("handler must not run for undecodable payloads")
		return nil
	}))

	job, err := store.Enqueue(ctx, &jobs.FaceGrouping{AlbumID: "album-1"})
	require.NoError(t, err)
	require.NoError(t, store.SetPayload(job.ID, "{not json"))

	runner := newTestRunner(t, store, registry)
	summary := runner.RunBatch(ctx)

	assert.Equal(t, 1, summary.Failed)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
}

func TestRunBatch_CompetingRunnersSingleProcessor(t *testing.T) {
	ctx := context.Background()
	store := jobs.NewMemoryStore(3)

	var calls int64
	var mu sync.Mutex
	registry := jobs.NewRegistry()
	registry.Register(jobs.TypeObjectDetection, jobs.HandlerFunc(func(ctx context.Context, payload jobs.Payload, jobID string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}))

	_, err := store.Enqueue(ctx, &jobs.ObjectDetection{ImageID: "img-1"})
	require.NoError(t, err)

	first := newTestRunner(t, store, registry)
	second := New(&Config{
		Logger:       testLogger(),
		Store:        store,
		Registry:     registry,
		WorkerID:     "other-worker",
		BatchSize:    10,
		LeaseTimeout: jobs.DefaultLeaseTimeout,
	})

	var wg sync.WaitGroup
	summaries := make([]Summary, 2)
	for i, r := range []*Runner{first, second} {
		wg.Add(1)
		go func(i int, r *Runner) {
			defer wg.Done()
			summaries[i] = r.RunBatch(ctx)
		}(i, r)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls)
	assert.Equal(t, 1, summaries[0].Processed+summaries[1].Processed)
	assert.Equal(t, 1, summaries[0].Succeeded+summaries[1].Succeeded)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := jobs.NewMemoryStore(3)
	registry := jobs.NewRegistry()

	runner := newTestRunner(t, store, registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}

func TestRun_WakeTriggersImmediateBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := jobs.NewMemoryStore(3)

	handled := make(chan string, 1)
	registry := jobs.NewRegistry()
	registry.Register(jobs.TypePreviewGeneration, jobs.HandlerFunc(func(ctx context.Context, payload jobs.Payload, jobID string) error {
		handled <- jobID
		return nil
	}))

	runner := New(&Config{
		Logger:       testLogger(),
		Store:        store,
		Registry:     registry,
		BatchSize:    10,
		PollInterval: time.Hour, // only wake-ups move the loop
		LeaseTimeout: jobs.DefaultLeaseTimeout,
	})

	go func() { _ = runner.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	job, err := store.Enqueue(ctx, &jobs.PreviewGeneration{ImageID: "img-1", OriginalPath: "temp/img-1"})
	require.NoError(t, err)
	runner.Wake()

	select {
	case jobID := <-handled:
		assert.Equal(t, job.ID, jobID)
	case <-time.After(2 * time.Second):
		t.Fatal("wake-up did not trigger a batch")
	}
}
