package ocr

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
	"imagequality/pkg/models"
)

type fakeAnnotator struct {
	resp    *visionpb.BatchAnnotateImagesResponse
	err     error
	lastReq *visionpb.BatchAnnotateImagesRequest
}

func (f *fakeAnnotator) BatchAnnotateImages(_ context.Context, req *visionpb.BatchAnnotateImagesRequest, _ ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeAnnotator) Close() error { return nil }

var jpeg = models.RawDocument{Content: []byte("\xFF\xD8\xFF\xE0"), MIMEType: "image/jpeg"}

func TestVisionAnalyzeText(t *testing.T) {
	client := &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			FullTextAnnotation: &visionpb.TextAnnotation{
				Text:  "Rechnung 2024-001\n",
				Pages: []*visionpb.Page{{Width: 800, Height: 600}},
			},
		}},
	}}

	doc, err := NewVisionAnalyzerWithClient(client).Analyze(context.Background(), jpeg)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if doc.Text != "Rechnung 2024-001\n" {
		t.Errorf("text = %q", doc.Text)
	}
	if len(doc.Pages) != 1 || doc.Pages[0].PageNumber != 1 || doc.Pages[0].HasQualityScores() {
		t.Errorf("pages = %+v", doc.Pages)
	}

	feature := client.lastReq.GetRequests()[0].GetFeatures()[0].GetType()
	if feature != visionpb.Feature_DOCUMENT_TEXT_DETECTION {
		t.Errorf("feature = %v", feature)
	}
}

func TestVisionAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeAnnotator
		raw    models.RawDocument
		want   error
	}{
		{"empty", &fakeAnnotator{}, models.RawDocument{}, ErrEmptyDocument},
		{"pdf", &fakeAnnotator{}, models.RawDocument{Content: []byte("%PDF-1.7"), MIMEType: "application/pdf"}, ErrUnsupportedFormat},
		{"rpc error", &fakeAnnotator{err: errors.New("unavailable")}, jpeg, ErrOCRFailed},
		{"no responses", &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{}}, jpeg, ErrOCRFailed},
		{
			"image error",
			&fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
				Responses: []*visionpb.AnnotateImageResponse{{Error: &statuspb.Status{Code: 3, Message: "Bad image data."}}},
			}},
			jpeg,
			ErrOCRFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVisionAnalyzerWithClient(tt.client).Analyze(context.Background(), tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var ocrErr *OCRError
			if !errors.As(err, &ocrErr) {
				t.Errorf("expected *OCRError, got %T", err)
			}
		})
	}
}
