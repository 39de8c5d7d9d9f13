package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/category"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/config"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/currency"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/invoice"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/suppliers"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/textract"
)

// loadConfig reads the configuration and applies the command's flag
// overrides. Flags a command does not define are ignored.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("dict") {
		cfg.CategoryDict, _ = flags.GetString("dict")
	}
	if flags.Changed("out") {
		cfg.OutputDir, _ = flags.GetString("out")
	}
	if flags.Changed("ocr-dpi") {
		cfg.OCRDPI, _ = flags.GetInt("ocr-dpi")
	}
	if flags.Changed("engine") {
		cfg.OCREngine, _ = flags.GetString("engine")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// createTextService builds the text dispatcher for the configured OCR
// engine. The closer releases cloud clients.
func createTextService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*textract.Service, func() error, error) {
	service, closer, err := textract.New(ctx, textract.Config{
		Engine:    cfg.OCREngine,
		Pdftotext: cfg.PdftotextPath,
		Tesseract: textract.TesseractConfig{
			Pdftoppm:    cfg.PdftoppmPath,
			Tesseract:   cfg.TesseractPath,
			Lang:        cfg.TesseractLang,
			TessdataDir: cfg.TessdataPrefix,
			DPI:         cfg.OCRDPI,
			MaxPages:    cfg.OCRMaxPages,
			PageTimeout: cfg.OCRPageTimeout,
			Enhance:     cfg.OCREnhance,
		},
		DocAI: textract.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
			Timeout:     cfg.OCRPageTimeout,
		},
		MinChars: cfg.HybridMinChars,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("engine", cfg.OCREngine).
			Msg("Failed to create text extraction service")
		return nil, closer, fmt.Errorf("failed to create text extraction service: %w", err)
	}

	log.Debug().Str("engine", cfg.OCREngine).Msg("Text extraction service created")
	return service, closer, nil
}

// createPipeline wires the text service, the supplier registry, the category
// resolver and the currency converter into a pipeline.
func createPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*invoice.Pipeline, func() error, error) {
	source, closer, err := createTextService(ctx, cfg, log)
	if err != nil {
		return nil, closer, err
	}

	reg, err := suppliers.NewRegistry(cfg.OwnFiscalIDs)
	if err != nil {
		return nil, closer, fmt.Errorf("failed to build supplier registry: %w", err)
	}

	var dict *category.Dictionary
	if cfg.CategoryDict != "" {
		dict, err = category.LoadDictionary(cfg.CategoryDict)
		if err != nil {
			if errors.Is(err, category.ErrCorruptDictionary) {
				log.Error().
					Err(err).
					Str("dictionary", cfg.CategoryDict).
					Msg("Category dictionary is unusable")
			}
			return nil, closer, fmt.Errorf("failed to load category dictionary: %w", err)
		}
		log.Info().
			Str("dictionary", cfg.CategoryDict).
			Int("entries", dict.Len()).
			Int("suppliers", dict.Suppliers()).
			Msg("Category dictionary loaded")
	} else {
		log.Warn().Msg("No category dictionary configured, every article will be PENDIENTE")
	}

	rates := currency.NewConverter(
		currency.NewHTTPOracle(cfg.FXRateURL, cfg.FXTimeout),
		currency.Config{
			Timeout:   cfg.FXTimeout,
			Fallbacks: map[string]float64{"USD/EUR": cfg.FXFallbackUSDEUR},
			Breaker:   currency.BreakerConfig{FailureThreshold: cfg.FXFailureThreshold},
		},
	)

	resolver := category.NewResolver(dict, suppliers.Aliases())
	return invoice.NewPipeline(source, reg, resolver, rates), closer, nil
}
