package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice [file]",
	Short: "Process a single invoice and print it as JSON",
	Long: `Run one document through the full pipeline (strategy resolution, text
extraction, line extraction, categorization, currency conversion and
reconciliation) and print the resulting invoice as JSON.

Useful to check a new supplier format or a category dictionary change before
running a whole batch. Nothing is written to the output folder.`,
	Example: `  # Print the processed invoice
  facturas invoice ./2024-04/madrueno_0412.pdf

  # With a category dictionary, saved to a file
  facturas invoice ticket.jpg --dict categorias.csv -o ticket.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoice,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)

	invoiceCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	invoiceCmd.Flags().String("dict", "", "Category dictionary (.csv or .xlsx), overrides CATEGORY_DICT")
	invoiceCmd.Flags().Int("ocr-dpi", 300, "Rasterization DPI for OCR, overrides OCR_DPI")
}

func runInvoice(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")

	path := args[0]
	outputPath, _ := cmd.Flags().GetString("output")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, closer, err := createPipeline(ctx, cfg, log)
	if closer != nil {
		defer closer()
	}
	if err != nil {
		return err
	}

	inv, err := pipeline.ProcessDocument(ctx, path, 1)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to process invoice")
		return err
	}

	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Println()
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Str("status", string(inv.Status)).
		Msg("Invoice written to file")
	return nil
}
