package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"memorial/internal/config"
	"memorial/internal/extract"
	"memorial/internal/logger"
	"memorial/internal/ocr"
	"memorial/internal/pdf"
	"memorial/internal/tables"
)

// workerCmd is the per-document entry point the scheduler spawns. It
// is hidden: users run `memorial extract`, which re-invokes the binary
// with this subcommand so each document gets its own process image
// (the image/OCR backends keep global state that cannot be shared
// across concurrent documents in one process).
var workerCmd = &cobra.Command{
	Use:    "worker [pdf-file]",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]
	log := logger.WithDocument("worker", pdfPath)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pageOCR, imageOCR, closeOCR, err := newOCREngines(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeOCR()

	// The raster pass needs a local pdftoppm. A missing renderer is a
	// startup failure, not a silent skip: a run that quietly dropped
	// the table/ROI pass would produce incomplete data without
	// signaling it.
	var enricher *extract.RasterEnricher
	if imageOCR != nil {
		renderer, err := pdf.NewPopplerRenderer()
		if err != nil {
			return fmt.Errorf("raster renderer required for table/ROI extraction: %w", err)
		}
		extractor := tables.NewExtractor(imageOCR, tables.Options{
			Languages: cfg.OCRLanguages,
			Whitelist: cfg.OCRWhitelist,
		})
		enricher = extract.NewRasterEnricher(renderer, extractor, extract.RasterOptions{
			DPI:     cfg.DPI,
			Carimbo: tables.ROISpec{XStart: cfg.CarimboXStart, YStart: cfg.CarimboYStart},
			Legenda: tables.ROISpec{XStart: cfg.LegendaXStart, YStart: cfg.LegendaYStart},
		})
	}

	hybrid := extract.NewHybridExtractor(
		pdf.NewNativeEngine(),
		pageOCR,
		ocr.NewCache(cfg.OCRCacheDir),
		extract.HybridOptions{
			MinTextLength: cfg.MinTextLength,
			ConfigVersion: cfg.OCRConfigVersion,
		},
	)

	result, err := hybrid.ExtractDocument(ctx, pdfPath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", pdfPath, err)
	}

	if enricher != nil {
		enricher.Enrich(ctx, pdfPath, result)
	}

	path, err := extract.SaveExtraction(result, cfg.OutDir)
	if err != nil {
		return err
	}
	log.Info().Str("result", path).Msg("Worker finished")
	return nil
}

// newOCREngines builds the configured page OCR backend. Image OCR
// (table cells, ROIs) is only available on the vision engine; with
// Document AI the raster fallback is skipped.
func newOCREngines(ctx context.Context, cfg *config.Config) (ocr.PageOCR, ocr.ImageOCR, func(), error) {
	switch cfg.OCREngine {
	case config.EngineDocumentAI:
		engine, err := ocr.NewDocumentAIEngine(ctx, ocr.DocumentAIConfig{
			ProjectID:        cfg.GoogleCloudProject,
			Location:         cfg.GoogleCloudLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIProcessorVersion,
			Timeout:          time.Duration(cfg.TaskTimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create Document AI engine: %w", err)
		}
		return engine, nil, func() { _ = engine.Close() }, nil
	default:
		engine, err := ocr.NewGoogleVisionEngine(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create Vision engine: %w", err)
		}
		return engine, engine, func() { _ = engine.Close() }, nil
	}
}
