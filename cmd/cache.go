package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"memorial/internal/config"
	"memorial/internal/logger"
	"memorial/internal/ocr"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the OCR result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached OCR result",
	Long: `Delete all entries from the OCR cache directory. The next extraction
run will re-OCR every page that lacks a native text layer.

Cached entries are keyed by PDF content, page and OCR configuration
version, so clearing is only needed to reclaim disk space; stale
entries never match.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cache")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	removed, err := ocr.NewCache(cfg.OCRCacheDir).Clear()
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	log.Info().Int("removed", removed).Str("dir", cfg.OCRCacheDir).Msg("Cache cleared")
	fmt.Printf("Removed %d cached OCR results from %s\n", removed, cfg.OCRCacheDir)
	return nil
}
