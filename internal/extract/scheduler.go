package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"memorial/internal/logger"
	"memorial/pkg/models"
)

// Launcher runs the full extraction of a single PDF and returns its
// result. The production launcher spawns an isolated worker process;
// tests inject in-process fakes.
type Launcher func(ctx context.Context, pdfPath string) (*models.RawExtraction, error)

// SchedulerOptions tunes the parallel batch run.
type SchedulerOptions struct {
	// MaxWorkers caps concurrent extractions. Zero means
	// min(NumCPU, 4): OCR tasks are memory-heavy and oversubscribing
	// cores buys nothing.
	MaxWorkers int

	// TaskTimeout bounds a single document's extraction. Zero means
	// 5 minutes.
	TaskTimeout time.Duration
}

// Scheduler fans document extraction out across isolated workers. A
// crashed or hung worker costs exactly one document: the batch always
// yields one result per input.
type Scheduler struct {
	launcher Launcher
	opts     SchedulerOptions
	log      zerolog.Logger
}

// NewScheduler builds a scheduler around the given launcher.
func NewScheduler(launcher Launcher, opts SchedulerOptions) *Scheduler {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = runtime.NumCPU()
		if opts.MaxWorkers > 4 {
			opts.MaxWorkers = 4
		}
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 5 * time.Minute
	}
	return &Scheduler{
		launcher: launcher,
		opts:     opts,
		log:      logger.WithComponent("scheduler"),
	}
}

// ExtractAll processes every PDF in pdfFiles and returns exactly one
// result per input, in input order. A failed or timed-out document
// yields a record whose Error field is set; it never aborts the batch.
func (s *Scheduler) ExtractAll(ctx context.Context, pdfFiles []string) []models.RawExtraction {
	start := time.Now()
	s.log.Info().
		Int("documents", len(pdfFiles)).
		Int("workers", s.opts.MaxWorkers).
		Msg("Starting parallel extraction")

	results := make([]models.RawExtraction, len(pdfFiles))
	sem := make(chan struct{}, s.opts.MaxWorkers)
	var wg sync.WaitGroup

	for i, path := range pdfFiles {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.runOne(ctx, path)
		}(i, path)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	s.log.Info().
		Int("succeeded", len(results)-failed).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("Parallel extraction complete")
	return results
}

func (s *Scheduler) runOne(parent context.Context, path string) models.RawExtraction {
	filename := filepath.Base(path)
	ctx, cancel := context.WithTimeout(parent, s.opts.TaskTimeout)
	defer cancel()

	result, err := s.launcher(ctx, path)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timeout after %s", s.opts.TaskTimeout)
		}
		s.log.Error().Err(err).Str("file", filename).Msg("Document extraction failed")
		return models.RawExtraction{Filename: filename, Error: err.Error()}
	}
	return *result
}

// NewProcessLauncher returns the production launcher: it re-invokes
// the running binary with the hidden worker subcommand so each
// document gets a fresh address space, and reads the worker's JSON
// artifact back. Worker configuration travels through the inherited
// environment. When the context expires the worker process is killed,
// not abandoned.
func NewProcessLauncher(outDir string) Launcher {
	log := logger.WithComponent("scheduler")
	return func(ctx context.Context, pdfPath string) (*models.RawExtraction, error) {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}

		cmd := exec.CommandContext(ctx, exe, "worker", pdfPath)
		cmd.Env = workerEnv(outDir)
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("worker stderr pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start worker: %w", err)
		}

		// Stream the worker's log lines into the coordinator's log so
		// per-document progress is visible live, not only post-mortem.
		done := make(chan struct{})
		go func() {
			defer close(done)
			scanner := bufio.NewScanner(stderr)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				log.Info().
					Str("worker", filepath.Base(pdfPath)).
					Msg(scanner.Text())
			}
		}()

		waitErr := cmd.Wait()
		<-done
		if waitErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("worker exited: %w", waitErr)
		}

		data, err := os.ReadFile(ExtractionPath(pdfPath, outDir))
		if err != nil {
			return nil, fmt.Errorf("read worker result: %w", err)
		}
		var result models.RawExtraction
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("decode worker result: %w", err)
		}
		return &result, nil
	}
}

// workerEnv builds the child environment. OUT_DIR travels explicitly:
// a flag-overridden output directory never reaches the worker through
// the inherited environment, and the coordinator reads the result from
// that directory. Workers log to stderr so the coordinator can stream
// their output regardless of the configured destination. Appended
// entries win over inherited duplicates.
func workerEnv(outDir string) []string {
	return append(os.Environ(),
		"OUT_DIR="+outDir,
		"LOG_OUTPUT=stderr",
		"LOG_FORMAT=json",
	)
}

// AggregateMetrics sums per-document metrics over a batch, skipping
// failed documents.
func AggregateMetrics(results []models.RawExtraction) models.ExtractionMetrics {
	var total models.ExtractionMetrics
	for _, r := range results {
		if r.Error != "" {
			continue
		}
		total.TotalPages += r.Metrics.TotalPages
		total.NativePages += r.Metrics.NativePages
		total.OCRPages += r.Metrics.OCRPages
		total.CacheHits += r.Metrics.CacheHits
		total.TotalOCRTime += r.Metrics.TotalOCRTime
	}
	if total.OCRPages > 0 {
		total.CacheHitRate = float64(total.CacheHits) / float64(total.OCRPages)
	}
	return total
}

// SaveAll writes the combined batch artifact (all_extractions.json),
// sorted by filename for stable diffs.
func SaveAll(results []models.RawExtraction, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	sorted := make([]models.RawExtraction, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	path := filepath.Join(outDir, "all_extractions.json")
	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write batch results: %w", err)
	}
	return path, nil
}
