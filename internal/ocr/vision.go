// Package ocr provides a text-only engine on Google Cloud Vision API.
//
// It runs DOCUMENT_TEXT_DETECTION on a single inline image. Vision does not
// compute image quality scores, so every page it returns has none. Use it to
// compare OCR output against the Document AI processor.
//
// Cloud Vision API Limitations:
//   - Maximum image size: 20MB inline
//   - Supported formats: JPEG, PNG, GIF, BMP, WEBP, RAW, ICO, TIFF
package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"imagequality/internal/logger"
	"imagequality/pkg/models"
)

// MaxImageSizeBytes is the maximum inline image size (20MB).
const MaxImageSizeBytes = 20 * 1024 * 1024

// ImageAnnotator is the subset of the Vision client used here.
// *vision.ImageAnnotatorClient satisfies it.
type ImageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionAnalyzer extracts text from images using Google Cloud Vision API.
type VisionAnalyzer struct {
	client ImageAnnotator
	log    zerolog.Logger
}

// NewVisionAnalyzer creates an analyzer with a Vision client.
func NewVisionAnalyzer(ctx context.Context, opts ...option.ClientOption) (*VisionAnalyzer, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, WrapOCRError("NewVisionAnalyzer", err, "failed to create Vision client")
	}
	return NewVisionAnalyzerWithClient(client), nil
}

// NewVisionAnalyzerWithClient creates an analyzer with an explicit client (for testing).
func NewVisionAnalyzerWithClient(client ImageAnnotator) *VisionAnalyzer {
	return &VisionAnalyzer{
		client: client,
		log:    logger.WithComponent("vision"),
	}
}

// Analyze runs document text detection on raw. Pages never carry quality scores.
func (v *VisionAnalyzer) Analyze(ctx context.Context, raw models.RawDocument) (*models.AnalyzedDocument, error) {
	const op = "Analyze"
	startTime := time.Now()

	if len(raw.Content) == 0 {
		return nil, WrapOCRError(op, ErrEmptyDocument, "")
	}
	if len(raw.Content) > MaxImageSizeBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("image size: %d bytes", len(raw.Content)))
	}
	if raw.MIMEType != "" && !strings.HasPrefix(raw.MIMEType, "image/") {
		return nil, WrapOCRError(op, ErrUnsupportedFormat, raw.MIMEType)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: raw.Content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, fmt.Errorf("%w: %w", ErrOCRFailed, err), "Vision API call failed")
	}
	if len(resp.GetResponses()) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imageResp := resp.GetResponses()[0]
	if imageResp.GetError() != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imageResp.GetError().GetMessage()))
	}

	annotation := imageResp.GetFullTextAnnotation()
	doc := &models.AnalyzedDocument{
		Text:  annotation.GetText(),
		Pages: make([]models.Page, 0, len(annotation.GetPages())),
	}
	for i := range annotation.GetPages() {
		doc.Pages = append(doc.Pages, models.Page{PageNumber: i + 1})
	}

	v.log.Info().
		Int("pages", len(doc.Pages)).
		Int("text_length", len(doc.Text)).
		Dur("duration", time.Since(startTime)).
		Msg("Vision text detection completed")

	return doc, nil
}

// Close closes the underlying Vision client.
func (v *VisionAnalyzer) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
