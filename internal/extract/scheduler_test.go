package extract

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorial/pkg/models"
)

// One failing document must not cost the batch anything beyond its own
// error record.
func TestExtractAllFaultIsolation(t *testing.T) {
	launcher := func(ctx context.Context, pdfPath string) (*models.RawExtraction, error) {
		name := filepath.Base(pdfPath)
		if name == "quebrado.pdf" {
			return nil, errors.New("worker exited: signal: killed")
		}
		return &models.RawExtraction{
			Filename: name,
			Metrics:  models.ExtractionMetrics{TotalPages: 2, NativePages: 1, OCRPages: 1},
		}, nil
	}

	scheduler := NewScheduler(launcher, SchedulerOptions{MaxWorkers: 2})
	results := scheduler.ExtractAll(context.Background(), []string{
		"a.pdf", "quebrado.pdf", "b.pdf", "c.pdf",
	})

	require.Len(t, results, 4)
	assert.Equal(t, "a.pdf", results[0].Filename)
	assert.Equal(t, "quebrado.pdf", results[1].Filename)
	assert.Contains(t, results[1].Error, "killed")
	assert.Empty(t, results[0].Error)
	assert.Empty(t, results[2].Error)
	assert.Empty(t, results[3].Error)
}

func TestExtractAllTimeout(t *testing.T) {
	launcher := func(ctx context.Context, pdfPath string) (*models.RawExtraction, error) {
		if filepath.Base(pdfPath) == "lento.pdf" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &models.RawExtraction{Filename: filepath.Base(pdfPath)}, nil
	}

	scheduler := NewScheduler(launcher, SchedulerOptions{
		MaxWorkers:  2,
		TaskTimeout: 20 * time.Millisecond,
	})
	results := scheduler.ExtractAll(context.Background(), []string{"ok.pdf", "lento.pdf"})

	require.Len(t, results, 2)
	assert.Empty(t, results[0].Error)
	assert.True(t, strings.HasPrefix(results[1].Error, "timeout after"), "got %q", results[1].Error)
}

func TestExtractAllRespectsWorkerCap(t *testing.T) {
	var running, peak int32
	launcher := func(ctx context.Context, pdfPath string) (*models.RawExtraction, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return &models.RawExtraction{Filename: filepath.Base(pdfPath)}, nil
	}

	scheduler := NewScheduler(launcher, SchedulerOptions{MaxWorkers: 2})
	scheduler.ExtractAll(context.Background(), []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf"})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestAggregateMetricsSkipsFailures(t *testing.T) {
	results := []models.RawExtraction{
		{Filename: "a.pdf", Metrics: models.ExtractionMetrics{TotalPages: 3, NativePages: 2, OCRPages: 1, CacheHits: 1, TotalOCRTime: 4}},
		{Filename: "b.pdf", Error: "timeout after 5m0s", Metrics: models.ExtractionMetrics{TotalPages: 99}},
		{Filename: "c.pdf", Metrics: models.ExtractionMetrics{TotalPages: 2, NativePages: 0, OCRPages: 2, CacheHits: 1, TotalOCRTime: 6}},
	}

	total := AggregateMetrics(results)

	assert.Equal(t, 5, total.TotalPages)
	assert.Equal(t, 2, total.NativePages)
	assert.Equal(t, 3, total.OCRPages)
	assert.Equal(t, 2, total.CacheHits)
	assert.InDelta(t, 10.0, total.TotalOCRTime, 1e-9)
	assert.InDelta(t, 2.0/3.0, total.CacheHitRate, 1e-9)
}

func TestWorkerEnvCarriesOutDir(t *testing.T) {
	// A flag-overridden output directory must reach the worker process;
	// an inherited OUT_DIR would silently win otherwise and the
	// coordinator would read results from the wrong directory.
	t.Setenv("OUT_DIR", "inherited")

	env := workerEnv("flagged")

	last := map[string]string{}
	for _, kv := range env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			last[kv[:i]] = kv[i+1:]
		}
	}
	assert.Equal(t, "flagged", last["OUT_DIR"])
	assert.Equal(t, "stderr", last["LOG_OUTPUT"])
	assert.Equal(t, "json", last["LOG_FORMAT"])
}

func TestSaveAllSortedByFilename(t *testing.T) {
	outDir := t.TempDir()
	results := []models.RawExtraction{
		{Filename: "b.pdf"},
		{Filename: "a.pdf", Error: "boom"},
	}

	path, err := SaveAll(results, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "all_extractions.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var saved []models.RawExtraction
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 2)
	assert.Equal(t, "a.pdf", saved[0].Filename)
	assert.Equal(t, "boom", saved[0].Error)
	assert.Equal(t, "b.pdf", saved[1].Filename)
}
