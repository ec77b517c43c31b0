package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"memorial/internal/config"
	"memorial/internal/generate"
	"memorial/internal/logger"
	"memorial/pkg/models"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Generate memorial prose sections from the master data",
	Long: `Generate the memorial descritivo's prose sections from mestre.json
using the OpenAI API. Each section is grounded exclusively on the
consolidated master data; the output is written as secoes.json
(section id -> generated text) for the document-writer layer.

Required environment variables:
  OPENAI_API_KEY - OpenAI API key
  LLM_MODEL      - Model name (default: gpt-4o)`,
	Example: `  # Generate every section
  memorial sections

  # Regenerate a single section
  memorial sections --section servicos`,
	Args: cobra.NoArgs,
	RunE: runSections,
}

func init() {
	rootCmd.AddCommand(sectionsCmd)

	sectionsCmd.Flags().StringP("out-dir", "o", "", "Directory holding mestre.json; secoes.json is written there too")
	sectionsCmd.Flags().String("section", "", "Generate only this section id")
}

func runSections(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("sections")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if outDir, _ := cmd.Flags().GetString("out-dir"); outDir != "" {
		cfg.OutDir = outDir
	}
	only, _ := cmd.Flags().GetString("section")

	masterPath := filepath.Join(cfg.OutDir, "mestre.json")
	data, err := os.ReadFile(masterPath)
	if err != nil {
		return fmt.Errorf("read %s (run `memorial consolidate` first): %w", masterPath, err)
	}
	var master models.MasterData
	if err := json.Unmarshal(data, &master); err != nil {
		return fmt.Errorf("decode %s: %w", masterPath, err)
	}

	generator, err := generate.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.LLMModel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sections := map[string]string{}
	sectionsPath := filepath.Join(cfg.OutDir, "secoes.json")
	if existing, err := os.ReadFile(sectionsPath); err == nil {
		// Keep previously generated sections when regenerating one.
		_ = json.Unmarshal(existing, &sections)
	}

	for _, id := range generate.SectionIDs() {
		if only != "" && id != only {
			continue
		}
		text, err := generator.GenerateSection(ctx, id, &master)
		if err != nil {
			return fmt.Errorf("generate section %s: %w", id, err)
		}
		sections[id] = text
		log.Info().Str("section", id).Int("length", len(text)).Msg("Section written")
	}
	if only != "" {
		if _, ok := sections[only]; !ok {
			return fmt.Errorf("unknown section: %s", only)
		}
	}

	out, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	if err := os.WriteFile(sectionsPath, out, 0o644); err != nil {
		return fmt.Errorf("write sections: %w", err)
	}

	fmt.Printf("Generated %d sections to %s\n", len(sections), sectionsPath)
	return nil
}
