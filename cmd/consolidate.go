package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"memorial/internal/config"
	"memorial/internal/consolidate"
	"memorial/internal/items"
	"memorial/internal/logger"
	"memorial/pkg/models"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge extraction results into the master project data",
	Long: `Read the extraction batch (all_extractions.json), scan every page and
table for inventory items, normalize them against the canonical type
table and merge everything into the master structure: building
identification from the stamps, floor list, service list, technical
rooms and cited standards.

Writes mestre.json plus the three CSV tables (itens_por_pavimento,
totais_por_servico, salas_tecnicas) to the output directory.`,
	Example: `  # Consolidate the last extraction run
  memorial consolidate

  # Read and write a specific directory
  memorial consolidate --out-dir ./projeto/out`,
	Args: cobra.NoArgs,
	RunE: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)

	consolidateCmd.Flags().StringP("out-dir", "o", "", "Directory holding all_extractions.json; outputs are written there too")
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("consolidate")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if outDir, _ := cmd.Flags().GetString("out-dir"); outDir != "" {
		cfg.OutDir = outDir
	}

	batchPath := filepath.Join(cfg.OutDir, "all_extractions.json")
	data, err := os.ReadFile(batchPath)
	if err != nil {
		return fmt.Errorf("read %s (run `memorial extract` first): %w", batchPath, err)
	}
	var extractions []models.RawExtraction
	if err := json.Unmarshal(data, &extractions); err != nil {
		return fmt.Errorf("decode %s: %w", batchPath, err)
	}

	itens := items.NormalizeAll(extractItems(extractions))
	log.Info().
		Int("documents", len(extractions)).
		Int("itens", len(itens)).
		Msg("Items extracted from batch")

	consolidator := consolidate.New()
	master := consolidator.Consolidate(extractions, itens)

	jsonPath, err := consolidator.ExportJSON(master, cfg.OutDir)
	if err != nil {
		return err
	}
	if err := consolidator.ExportCSVs(master, cfg.OutDir); err != nil {
		return err
	}

	fmt.Printf("\nConsolidation summary:\n")
	fmt.Printf("  Empreendimento: %s\n", orDash(master.Obra.Empreendimento))
	fmt.Printf("  Construtora: %s\n", orDash(master.Obra.Construtora))
	fmt.Printf("  Pavimentos: %s\n", orDash(strings.Join(master.Pavimentos, ", ")))
	fmt.Printf("  Serviços: %s\n", orDash(strings.Join(master.Servicos, ", ")))
	fmt.Printf("  Itens: %d, salas técnicas: %d, normas: %d\n",
		len(master.Itens), len(master.SalasTecnicas), len(master.Normas))
	fmt.Printf("  Master data: %s\n", jsonPath)
	return nil
}

// extractItems scans every successful document's pages and tables for
// inventory items, carrying each page's floor as context.
func extractItems(extractions []models.RawExtraction) []models.RawItem {
	extractor := items.NewExtractor()
	var all []models.RawItem
	for _, ext := range extractions {
		if ext.Error != "" {
			continue
		}
		for _, page := range ext.Pages {
			pageCtx := items.PageContext{Pavimento: page.Pavimento}
			all = append(all, extractor.FromText(page.Text, pageCtx)...)
		}
		for _, table := range ext.Tables {
			all = append(all, extractor.FromTable(table, items.PageContext{})...)
		}
	}
	return all
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
