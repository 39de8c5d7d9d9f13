package textract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// DocumentAIConfig identifies a Document AI OCR processor.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string // "eu", "us"
	ProcessorID string
	Timeout     time.Duration
}

// DocumentAIOCR recognizes documents with a Google Document AI OCR processor
// and returns Document.Text.
type DocumentAIOCR struct {
	client *documentai.DocumentProcessorClient
	cfg    DocumentAIConfig
}

// NewDocumentAIOCR creates the engine against the processor's regional endpoint.
func NewDocumentAIOCR(ctx context.Context, cfg DocumentAIConfig) (*DocumentAIOCR, error) {
	const op = "NewDocumentAIOCR"

	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, wrapError("documentai", op, ErrMissingCredentials, "project and processor ID are required")
	}
	if cfg.Location == "" {
		cfg.Location = "eu"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := credentialOptions()
	opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)))

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, wrapError("documentai", op, err, fmt.Sprintf("failed to create client for location %s", cfg.Location))
	}
	return &DocumentAIOCR{client: client, cfg: cfg}, nil
}

func (d *DocumentAIOCR) Name() string { return "documentai" }

// Extract implements Backend.
func (d *DocumentAIOCR) Extract(ctx context.Context, path string) (string, error) {
	const op = "Extract"

	data, err := readLimited(path)
	if err != nil {
		return "", wrapError(d.Name(), op, err, path)
	}

	processCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: fmt.Sprintf("projects/%s/locations/%s/processors/%s", d.cfg.ProjectID, d.cfg.Location, d.cfg.ProcessorID),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType(path),
			},
		},
	}

	resp, err := d.client.ProcessDocument(processCtx, req)
	if err != nil {
		return "", wrapError(d.Name(), op, err, "ProcessDocument failed")
	}
	if resp.Document == nil {
		return "", wrapError(d.Name(), op, ErrEmptyDocument, "no document in response")
	}
	return resp.Document.Text, nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIOCR) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/pdf"
	}
}
