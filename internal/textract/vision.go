package textract

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

const (
	// MaxFileSizeBytes is the maximum file size for synchronous cloud OCR (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the number of PDF pages Vision annotates synchronously
	MaxPagesSync = 5
)

// VisionOCR recognizes documents with Google Cloud Vision DOCUMENT_TEXT_DETECTION.
type VisionOCR struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionOCR creates the engine with credentials from the environment.
// It expects either GOOGLE_CREDENTIALS JSON or a GOOGLE_APPLICATION_CREDENTIALS path,
// and falls back to application default credentials.
func NewVisionOCR(ctx context.Context) (*VisionOCR, error) {
	const op = "NewVisionOCR"

	client, err := vision.NewImageAnnotatorClient(ctx, credentialOptions()...)
	if err != nil {
		return nil, wrapError("vision", op, ErrMissingCredentials, err.Error())
	}
	return &VisionOCR{client: client}, nil
}

func (v *VisionOCR) Name() string { return "vision" }

// Extract implements Backend.
func (v *VisionOCR) Extract(ctx context.Context, path string) (string, error) {
	const op = "Extract"

	data, err := readLimited(path)
	if err != nil {
		return "", wrapError(v.Name(), op, err, path)
	}

	feature := []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}}

	if IsImage(path) {
		resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
			Requests: []*visionpb.AnnotateImageRequest{{
				Image:    &visionpb.Image{Content: data},
				Features: feature,
				ImageContext: &visionpb.ImageContext{
					LanguageHints: []string{"es"},
				},
			}},
		})
		if err != nil {
			return "", wrapError(v.Name(), op, err, "Vision API call failed")
		}
		if len(resp.Responses) == 0 {
			return "", wrapError(v.Name(), op, ErrEmptyDocument, "no response from Vision API")
		}
		r := resp.Responses[0]
		if r.Error != nil {
			return "", wrapError(v.Name(), op, fmt.Errorf("%s", r.Error.Message), "Vision API error")
		}
		if r.FullTextAnnotation == nil {
			return "", nil
		}
		return r.FullTextAnnotation.Text, nil
	}

	pages := make([]int32, 0, MaxPagesSync)
	for i := int32(1); i <= MaxPagesSync; i++ {
		pages = append(pages, i)
	}
	resp, err := v.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{
				Content:  data,
				MimeType: "application/pdf",
			},
			Features: feature,
			Pages:    pages,
		}},
	})
	if err != nil {
		return "", wrapError(v.Name(), op, err, "Vision API call failed")
	}
	if len(resp.Responses) == 0 {
		return "", wrapError(v.Name(), op, ErrEmptyDocument, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return "", wrapError(v.Name(), op, fmt.Errorf("%s", fileResp.Error.Message), "Vision API error")
	}

	var sb strings.Builder
	for i, page := range fileResp.Responses {
		if page.Error != nil {
			return sb.String(), wrapError(v.Name(), op, fmt.Errorf("%s", page.Error.Message), fmt.Sprintf("page %d", i+1))
		}
		if page.FullTextAnnotation == nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\f\n")
		}
		sb.WriteString(page.FullTextAnnotation.Text)
	}
	return sb.String(), nil
}

// Close closes the underlying Vision client.
func (v *VisionOCR) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func credentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

func readLimited(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrDocumentTooLarge, info.Size())
	}
	return os.ReadFile(path)
}
