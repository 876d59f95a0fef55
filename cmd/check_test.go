package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"imagequality/internal/config"
	"imagequality/internal/docai"
	"imagequality/internal/gcs"
	"imagequality/pkg/models"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		arg, bucket, object string
	}{
		{"gs://input-bucket/scans/a.png", "input-bucket", "scans/a.png"},
		{"scans/a.png", "", "scans/a.png"},
		{"gs://only-bucket", "only-bucket", ""},
	}
	for _, tt := range tests {
		bucket, object := parseSource(tt.arg)
		if bucket != tt.bucket || object != tt.object {
			t.Errorf("parseSource(%q) = %q, %q; want %q, %q", tt.arg, bucket, object, tt.bucket, tt.object)
		}
	}
}

func TestApplyCheckOptions(t *testing.T) {
	cfg := &config.Config{
		GoogleCloudProject:         "env-project",
		GoogleCloudLocation:        "us",
		DocumentAIProcessorID:      "env-proc",
		DocumentAIProcessorVersion: "rc",
		GCSSourceBucket:            "env-bucket",
	}

	err := applyCheckOptions(cfg, checkOptions{
		processorName: "projects/p1/locations/eu/processors/x9/processorVersions/v2",
		bucket:        "flag-bucket",
		version:       "v3",
	})
	if err != nil {
		t.Fatalf("applyCheckOptions: %v", err)
	}

	want := models.ProcessorRef{ProjectID: "p1", Location: "eu", ProcessorID: "x9", ProcessorVersion: "v3"}
	if got := cfg.ProcessorRef(); got != want {
		t.Errorf("processor = %+v, want %+v", got, want)
	}
	if cfg.GCSSourceBucket != "flag-bucket" {
		t.Errorf("bucket = %q", cfg.GCSSourceBucket)
	}
}

func TestApplyCheckOptionsRejectsBadName(t *testing.T) {
	err := applyCheckOptions(&config.Config{}, checkOptions{processorName: "projects/p1/processors/x9"})
	if !errors.Is(err, docai.ErrInvalidProcessorName) {
		t.Fatalf("err = %v, want ErrInvalidProcessorName", err)
	}
}

func TestValidateCheck(t *testing.T) {
	complete := &config.Config{
		GoogleCloudProject:         "p",
		GoogleCloudLocation:        "us",
		DocumentAIProcessorID:      "x",
		DocumentAIProcessorVersion: "rc",
		GCSSourceBucket:            "b",
	}
	visionOnly := &config.Config{GCSSourceBucket: "b"}

	tests := []struct {
		name    string
		cfg     *config.Config
		opts    checkOptions
		wantErr bool
	}{
		{"document ai", complete, checkOptions{object: "a.png", engine: engineDocumentAI, timeoutSecs: 10}, false},
		{"vision without processor", visionOnly, checkOptions{object: "a.png", engine: engineVision, timeoutSecs: 10}, false},
		{"document ai without processor", visionOnly, checkOptions{object: "a.png", engine: engineDocumentAI, timeoutSecs: 10}, true},
		{"missing object", complete, checkOptions{engine: engineDocumentAI, timeoutSecs: 10}, true},
		{"zero timeout", complete, checkOptions{object: "a.png", engine: engineDocumentAI}, true},
		{"unknown engine", complete, checkOptions{object: "a.png", engine: "tesseract", timeoutSecs: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCheck(tt.cfg, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleCheckErrorKeepsCause(t *testing.T) {
	log := zerolog.Nop()
	tests := []struct {
		err  error
		hint string
	}{
		{docai.ErrDeadlineExceeded, "--timeout"},
		{context.DeadlineExceeded, "--timeout"},
		{gcs.ErrObjectNotFound, "not found"},
		{docai.ErrMIMEMismatch, "--trust-mime-type"},
		{docai.ErrProcessorNotFound, "processor version"},
	}
	for _, tt := range tests {
		got := handleCheckError(tt.err, log)
		if !errors.Is(got, tt.err) {
			t.Errorf("handleCheckError(%v) lost the cause", tt.err)
		}
		if !strings.Contains(got.Error(), tt.hint) {
			t.Errorf("handleCheckError(%v) = %q, want hint %q", tt.err, got, tt.hint)
		}
	}
}

func TestJSONReporterFillsMetadata(t *testing.T) {
	src := models.SourceObject{Bucket: "b", Object: "a.png", MIMEType: "image/png"}
	doc := &models.AnalyzedDocument{Text: "Hello", Pages: []models.Page{{PageNumber: 1}}}

	var buf bytes.Buffer
	reporter := newReporter(true, "projects/p/locations/us/processors/x/processorVersions/rc", time.Now())
	if err := reporter(&buf, src, doc); err != nil {
		t.Fatalf("reporter: %v", err)
	}

	for _, want := range []string{`"source": "gs://b/a.png"`, `"mime_type": "image/png"`, `"processor": "projects/p/locations/us/processors/x/processorVersions/rc"`, `"page_count": 1`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("JSON output missing %s:\n%s", want, buf.String())
		}
	}
}
