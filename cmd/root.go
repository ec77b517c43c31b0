package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"memorial/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "memorial",
	Short: "Memorial CLI - extracts and consolidates engineering-project PDF data",
	Long: `Memorial CLI processes telecom/engineering project PDFs into the
consolidated data a memorial descritivo is written from.

The pipeline: extract (hybrid native-text/OCR per page, parallel across
documents) -> consolidate (merge stamps, normalize inventory items,
emit master JSON + CSV tables) -> sections (LLM-generated prose).`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Memorial CLI executed")

		fmt.Println("Welcome to Memorial CLI!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
