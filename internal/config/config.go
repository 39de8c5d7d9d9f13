package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
)

type Config struct {
	// Text extraction
	OCREngine      string // tesseract, vision, documentai
	TesseractPath  string
	PdftoppmPath   string
	PdftotextPath  string
	TesseractLang  string
	TessdataPrefix string
	OCRDPI         int
	OCREnhance     bool
	OCRPageTimeout time.Duration
	OCRMaxPages    int
	HybridMinChars int

	// Currency conversion
	FXRateURL          string
	FXTimeout          time.Duration
	FXFallbackUSDEUR   float64
	FXFailureThreshold int

	// Business identity (excluded from supplier fiscal ID detection)
	OwnFiscalIDs []string

	// Inputs and outputs
	CategoryDict string
	OutputDir    string

	// Google Cloud Configuration (optional OCR engines and Sheets upload)
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string
	GoogleSheetURL        string
	GoogleSheetWorksheet  string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment and, when present, from
// facturas.yaml in the working directory or $HOME/.config/facturas.
// Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("facturas")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/facturas")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	config := fromViper(v)

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration Load would produce with an empty environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		OCREngine:      strings.ToLower(v.GetString("OCR_ENGINE")),
		TesseractPath:  v.GetString("TESSERACT_PATH"),
		PdftoppmPath:   v.GetString("PDFTOPPM_PATH"),
		PdftotextPath:  v.GetString("PDFTOTEXT_PATH"),
		TesseractLang:  v.GetString("TESSERACT_LANG"),
		TessdataPrefix: v.GetString("TESSDATA_PREFIX"),
		OCRDPI:         v.GetInt("OCR_DPI"),
		OCREnhance:     v.GetBool("OCR_ENHANCE"),
		OCRPageTimeout: v.GetDuration("OCR_PAGE_TIMEOUT"),
		OCRMaxPages:    v.GetInt("OCR_MAX_PAGES"),
		HybridMinChars: v.GetInt("HYBRID_MIN_CHARS"),

		FXRateURL:          v.GetString("FX_RATE_URL"),
		FXTimeout:          v.GetDuration("FX_TIMEOUT"),
		FXFallbackUSDEUR:   v.GetFloat64("FX_FALLBACK_USD_EUR"),
		FXFailureThreshold: v.GetInt("FX_FAILURE_THRESHOLD"),

		OwnFiscalIDs: splitList(v.GetString("OWN_FISCAL_IDS")),

		CategoryDict: v.GetString("CATEGORY_DICT"),
		OutputDir:    v.GetString("OUTPUT_DIR"),

		GoogleCloudProject:    v.GetString("GOOGLE_CLOUD_PROJECT"),
		GoogleCloudLocation:   v.GetString("GOOGLE_CLOUD_LOCATION"),
		DocumentAIProcessorID: v.GetString("DOCUMENT_AI_PROCESSOR_ID"),
		GoogleSheetURL:        v.GetString("GOOGLE_SHEET_URL"),
		GoogleSheetWorksheet:  v.GetString("GOOGLE_SHEET_WORKSHEET"),

		LogLevel:      v.GetString("LOG_LEVEL"),
		LogFormat:     v.GetString("LOG_FORMAT"),
		LogTimeFormat: v.GetString("LOG_TIME_FORMAT"),
		LogOutput:     v.GetString("LOG_OUTPUT"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OCR_ENGINE", "tesseract")
	v.SetDefault("TESSERACT_PATH", "tesseract")
	v.SetDefault("PDFTOPPM_PATH", "pdftoppm")
	v.SetDefault("PDFTOTEXT_PATH", "pdftotext")
	v.SetDefault("TESSERACT_LANG", "spa")
	v.SetDefault("OCR_DPI", 300)
	v.SetDefault("OCR_ENHANCE", true)
	v.SetDefault("OCR_PAGE_TIMEOUT", "60s")
	v.SetDefault("OCR_MAX_PAGES", 10)
	v.SetDefault("HYBRID_MIN_CHARS", 100)
	v.SetDefault("FX_RATE_URL", "https://api.frankfurter.app")
	v.SetDefault("FX_TIMEOUT", "5s")
	v.SetDefault("FX_FALLBACK_USD_EUR", 1.08)
	v.SetDefault("FX_FAILURE_THRESHOLD", 5)
	v.SetDefault("OUTPUT_DIR", "out")
	v.SetDefault("GOOGLE_CLOUD_LOCATION", "eu")
	v.SetDefault("GOOGLE_SHEET_WORKSHEET", "FACTURAS")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00")
	v.SetDefault("LOG_OUTPUT", "stderr")
}

func (c *Config) validate() error {
	switch c.OCREngine {
	case "tesseract", "vision", "documentai":
	default:
		return fmt.Errorf("OCR_ENGINE must be tesseract, vision or documentai, got %q", c.OCREngine)
	}
	if c.OCRDPI < 72 || c.OCRDPI > 1200 {
		return fmt.Errorf("OCR_DPI must be between 72 and 1200, got %d", c.OCRDPI)
	}
	if c.OCRPageTimeout <= 0 {
		return fmt.Errorf("OCR_PAGE_TIMEOUT must be positive")
	}
	if c.FXTimeout <= 0 {
		return fmt.Errorf("FX_TIMEOUT must be positive")
	}
	if c.FXFallbackUSDEUR <= 0 {
		return fmt.Errorf("FX_FALLBACK_USD_EUR must be positive")
	}
	if c.OCREngine == "documentai" && (c.GoogleCloudProject == "" || c.DocumentAIProcessorID == "") {
		return fmt.Errorf("OCR_ENGINE=documentai requires GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID")
	}
	return nil
}

// Validate re-checks the configuration after CLI flags overrode it.
func (c *Config) Validate() error {
	return c.validate()
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
