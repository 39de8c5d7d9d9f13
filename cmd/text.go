package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

var textCmd = &cobra.Command{
	Use:   "text [file]",
	Short: "Print the raw text a backend extracts from a document",
	Long: `Run a single text backend on a document and print what it returns. This is
what a supplier strategy sees, so it is the place to start when writing or
debugging line patterns.

Backends:
  text    - embedded PDF text, pure Go
  tables  - pdftotext -layout, keeps columns aligned
  ocr     - the configured OCR engine (tesseract, vision or documentai)
  hybrid  - tables, falling back to OCR when the output is too short

Images always go to OCR.`,
	Example: `  # Embedded text
  facturas text factura.pdf

  # Column layout, as the tables strategies see it
  facturas text factura.pdf --backend tables

  # OCR with Google Vision and the attempt log on stderr
  facturas text ticket.jpg --backend ocr --engine vision --metadata`,
	Args: cobra.ExactArgs(1),
	RunE: runText,
}

func init() {
	rootCmd.AddCommand(textCmd)

	textCmd.Flags().String("backend", string(models.CapText), "Backend: text, tables, ocr or hybrid")
	textCmd.Flags().String("engine", "", "OCR engine, overrides OCR_ENGINE")
	textCmd.Flags().Int("ocr-dpi", 300, "Rasterization DPI for OCR, overrides OCR_DPI")
	textCmd.Flags().BoolP("metadata", "m", false, "Print the backend attempts to stderr")
}

func runText(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("text")

	path := args[0]
	backend, _ := cmd.Flags().GetString("backend")
	metadata, _ := cmd.Flags().GetBool("metadata")

	capability := models.Capability(backend)
	switch capability {
	case models.CapText, models.CapTables, models.CapOCR, models.CapHybrid:
	default:
		return fmt.Errorf("invalid backend: %s (must be text, tables, ocr or hybrid)", backend)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("path is not a regular file: %s", path)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, closer, err := createTextService(ctx, cfg, log)
	if closer != nil {
		defer closer()
	}
	if err != nil {
		return err
	}

	res := service.Text(ctx, path, capability)

	if metadata {
		fmt.Fprintf(os.Stderr, "=== %s ===\n", filepath.Base(path))
		for _, a := range res.Attempts {
			status := "ok"
			if a.Err != nil {
				status = a.Err.Error()
			}
			fmt.Fprintf(os.Stderr, "%-7s %-18s %6d chars  %s\n", a.Backend, a.Engine, a.Chars, status)
		}
		fmt.Fprintln(os.Stderr)
	}

	if res.Empty() {
		log.Warn().
			Str("file", path).
			Str("backend", backend).
			Int("attempts", len(res.Attempts)).
			Msg("No text extracted")
		return fmt.Errorf("no text extracted from %s with backend %s", filepath.Base(path), backend)
	}

	fmt.Println(res.Text)
	return nil
}
