package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/export"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/invoice"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/ledger"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/sheets"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

var runCmd = &cobra.Command{
	Use:   "run [input-dir]",
	Short: "Process every invoice in a folder and write the workbook and run log",
	Long: `Process all invoices (pdf, jpg, jpeg, png) directly inside a folder, in name
order. Each document is matched to a supplier strategy by filename, then by
its first page, then by the generic fallback. Lines are categorized with the
category dictionary and reconciled against the printed total.

Outputs, written to --out:
  facturas_YYYYMMDD_HHMMSS.xlsx - sheets Facturas, Resumen and Errores
  facturas_YYYYMMDD_HHMMSS.log  - statistics, fiscal IDs, IBANs, pending
                                  categories and per-document notes

Ctrl-C stops the batch after the current document; the documents processed
so far are still written.

Optional environment variables:
  CATEGORY_DICT          - Category dictionary (.csv or .xlsx)
  OUTPUT_DIR             - Output folder (default: out)
  OCR_ENGINE             - tesseract, vision or documentai (default: tesseract)
  OWN_FISCAL_IDS         - Comma list of the business's own CIF/NIF
  GOOGLE_SHEET_URL       - Google Sheet for --sheet
  GOOGLE_SHEET_WORKSHEET - Worksheet for --sheet (default: FACTURAS)`,
	Example: `  # Process a month of invoices
  facturas run ./2024-04 --dict DiccionarioProveedoresCategoria.xlsx

  # Only one supplier, outputs in ./informes
  facturas run ./2024-04 --only madrueno --out ./informes

  # Also append the detail rows to the configured Google Sheet
  facturas run ./2024-04 --sheet`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("dict", "", "Category dictionary (.csv or .xlsx), overrides CATEGORY_DICT")
	runCmd.Flags().String("out", "", "Output folder, overrides OUTPUT_DIR")
	runCmd.Flags().String("only", "", "Process only the documents of this supplier (name or alias)")
	runCmd.Flags().Int("ocr-dpi", 300, "Rasterization DPI for OCR, overrides OCR_DPI")
	runCmd.Flags().Bool("sheet", false, "Append the detail rows to GOOGLE_SHEET_URL")
}

func runBatch(cmd *cobra.Command, args []string) error {
	inputDir := args[0]
	only, _ := cmd.Flags().GetString("only")
	upload, _ := cmd.Flags().GetBool("sheet")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	runID := export.NewRunID()
	log := logger.WithRun("run", runID.String())
	started := time.Now()

	paths, err := invoice.ListInputs(inputDir)
	if err != nil {
		log.Error().Err(err).Str("input", inputDir).Msg("No input to process")
		return err
	}

	// SIGINT and SIGTERM stop the batch between documents.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, closer, err := createPipeline(ctx, cfg, log)
	if closer != nil {
		defer func() {
			if err := closer(); err != nil {
				log.Warn().Err(err).Msg("Failed to close text extraction service")
			}
		}()
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("input", inputDir).
		Int("documents", len(paths)).
		Str("only", only).
		Str("engine", cfg.OCREngine).
		Msg("Starting batch")

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("                         FACTURAS")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Carpeta:    %s\n", inputDir)
	fmt.Printf("Documentos: %d\n", len(paths))
	if only != "" {
		fmt.Printf("Proveedor:  %s\n", only)
	}
	fmt.Println()

	opts := invoice.RunOptions{
		Only: only,
		Progress: func(inv *models.Invoice, scanned int) {
			printProgress(inv, scanned, len(paths))
		},
	}
	invoices, runErr := pipeline.Run(ctx, paths, opts)
	canceled := errors.Is(runErr, invoice.ErrCanceled)
	if runErr != nil && !canceled && !errors.Is(runErr, invoice.ErrUnreadableFile) {
		return runErr
	}

	l := ledger.New(invoices...)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	workbookPath, logPath := export.OutputPaths(cfg.OutputDir, started)

	if err := export.WriteWorkbook(workbookPath, l); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	report := export.Report{
		RunID:    runID,
		Input:    inputDir,
		Started:  started,
		Duration: time.Since(started),
		Ledger:   l,
		Pending:  pipeline.Resolver().Pending().Items(),
		Skipped:  skipped(runErr),
	}
	if err := export.WriteLogFile(logPath, report); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}

	if upload {
		if err := uploadDetail(ctx, cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet, l); err != nil {
			return err
		}
	}

	printSummary(l, report, workbookPath, logPath)

	log.Info().
		Int("documents", len(paths)).
		Int("invoices", l.Len()).
		Int("skipped", len(report.Skipped)).
		Int("pending_categories", len(report.Pending)).
		Dur("duration", report.Duration).
		Msg("Batch completed")

	if canceled {
		return runErr
	}
	return nil
}

// skipped lists the documents a batch could not read, as "file: reason".
func skipped(err error) []string {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	var out []string
	for _, e := range errs {
		var pe *invoice.PipelineError
		if errors.As(e, &pe) && pe.Path != "" {
			out = append(out, fmt.Sprintf("%s: %v", filepath.Base(pe.Path), pe.Err))
		}
	}
	return out
}

func uploadDetail(ctx context.Context, sheetURL, worksheet string, l *ledger.Ledger) error {
	if sheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required for --sheet")
	}

	fmt.Println("Escribiendo detalle en Google Sheet...")
	service, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to create Google Sheets service: %w", err)
	}
	rows := l.Detail()
	if err := service.AppendDetail(ctx, worksheet, rows); err != nil {
		return fmt.Errorf("failed to write to Google Sheet: %w", err)
	}
	fmt.Printf("Hoja: %s (%d filas)\n", worksheet, len(rows))
	return nil
}

// printProgress prints one finished invoice. The counter is documents
// scanned out of documents in the folder.
func printProgress(inv *models.Invoice, scanned, total int) {
	fmt.Printf("[%d/%d] #%d %s - %s %s", scanned, total, inv.Number, filepath.Base(inv.SourcePath), statusMark(inv.Status), inv.Supplier)
	if inv.Total != nil {
		fmt.Printf(" (%s €)", parse.FormatMoney(*inv.Total))
	}
	if !inv.Status.IsOK() {
		fmt.Printf(" [%s]", inv.Status)
	}
	fmt.Println()
}

func statusMark(status models.Status) string {
	switch {
	case status.IsOK():
		return "✅"
	case status.IsDescuadre():
		return "⚠️"
	default:
		return "❌"
	}
}

func printSummary(l *ledger.Ledger, report export.Report, workbookPath, logPath string) {
	st := l.Stats()

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RESULTADO")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Facturas:          %d\n", st.Documents)
	fmt.Printf("Líneas:            %d\n", st.Lines)
	fmt.Printf("Cuadradas:         %d (%s%%)\n", st.OK, parse.FormatMoney(st.OKRatio()*100))
	for _, sc := range st.Statuses {
		if sc.Status.IsOK() {
			continue
		}
		fmt.Printf("  %-24s %d\n", sc.Status, sc.Count)
	}
	if len(report.Skipped) > 0 {
		fmt.Printf("Ilegibles:         %d\n", len(report.Skipped))
	}
	if len(report.Pending) > 0 {
		fmt.Printf("Sin categoría:     %d artículos\n", len(report.Pending))
	}
	fmt.Printf("Σ total calculado: %s €\n", parse.FormatMoney(st.CalcTotal))
	fmt.Println()
	fmt.Printf("Excel: %s\n", workbookPath)
	fmt.Printf("Log:   %s\n", logPath)
	fmt.Println(strings.Repeat("=", 80))
}
