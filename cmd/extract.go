package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"memorial/internal/config"
	"memorial/internal/extract"
	"memorial/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf-files-or-dirs...]",
	Short: "Extract text and metadata from project PDFs in parallel",
	Long: `Process project PDFs with the hybrid extraction strategy: each page
first tries the native text layer, validated for length and character
composition; pages without usable text fall back to OCR, with results
cached by content hash so repeated runs are cheap.

Documents are processed in parallel, each in its own worker process so
a crash or hang in one document never takes down the batch. Per-document
results are written as <name>_extracted.json plus a consolidated
all_extractions.json.

Required environment variables (vision engine):
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Extract every PDF in a project directory
  memorial extract ./projeto/

  # Extract specific files with more workers
  memorial extract planta-terreo.pdf planta-tipo.pdf --workers 4

  # Longer per-document timeout for very large drawings
  memorial extract ./projeto/ --timeout 600`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("out-dir", "o", "", "Output directory (default: OUT_DIR env or ./out)")
	extractCmd.Flags().Int("workers", 0, "Max concurrent workers (default: min(NumCPU, 4))")
	extractCmd.Flags().Int("timeout", 0, "Per-document timeout in seconds (default: 300)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if outDir, _ := cmd.Flags().GetString("out-dir"); outDir != "" {
		cfg.OutDir = outDir
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.MaxWorkers = workers
	}
	if timeout, _ := cmd.Flags().GetInt("timeout"); timeout > 0 {
		cfg.TaskTimeoutSeconds = timeout
	}

	pdfFiles, err := collectPDFs(args)
	if err != nil {
		return err
	}
	if len(pdfFiles) == 0 {
		return fmt.Errorf("no PDF files found in %s", strings.Join(args, ", "))
	}

	log.Info().
		Int("files", len(pdfFiles)).
		Str("out_dir", cfg.OutDir).
		Msg("Starting extraction batch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := extract.NewScheduler(extract.NewProcessLauncher(cfg.OutDir), extract.SchedulerOptions{
		MaxWorkers:  cfg.MaxWorkers,
		TaskTimeout: time.Duration(cfg.TaskTimeoutSeconds) * time.Second,
	})
	results := scheduler.ExtractAll(ctx, pdfFiles)

	batchPath, err := extract.SaveAll(results, cfg.OutDir)
	if err != nil {
		return fmt.Errorf("save batch results: %w", err)
	}

	metrics := extract.AggregateMetrics(results)
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
			fmt.Printf("  FAILED %s: %s\n", r.Filename, r.Error)
		}
	}

	fmt.Printf("\nExtraction summary:\n")
	fmt.Printf("  Documents: %d (%d failed)\n", len(results), failed)
	fmt.Printf("  Pages: %d total, %d native, %d OCR\n",
		metrics.TotalPages, metrics.NativePages, metrics.OCRPages)
	fmt.Printf("  Cache: %d hits (%.0f%%)\n", metrics.CacheHits, metrics.CacheHitRate*100)
	fmt.Printf("  OCR time: %.1fs\n", metrics.TotalOCRTime)
	fmt.Printf("  Results: %s\n", batchPath)
	return nil
}

// collectPDFs expands directories into their PDF contents and passes
// files through, deduplicated and sorted.
func collectPDFs(args []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			if !strings.EqualFold(filepath.Ext(arg), ".pdf") {
				return nil, fmt.Errorf("%s is not a PDF file", arg)
			}
			add(arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
				continue
			}
			add(filepath.Join(arg, entry.Name()))
		}
	}

	sort.Strings(files)
	return files, nil
}
