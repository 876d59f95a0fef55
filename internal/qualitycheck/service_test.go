package qualitycheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"imagequality/internal/docai"
	"imagequality/internal/gcs"
	"imagequality/internal/report"
	"imagequality/pkg/models"
)

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeFetcher struct {
	data []byte
	err  error
}

func (f fakeFetcher) Fetch(context.Context, string, string) ([]byte, error) {
	return f.data, f.err
}

type fakeAnalyzer struct {
	doc   *models.AnalyzedDocument
	err   error
	calls int
	raw   models.RawDocument
}

func (a *fakeAnalyzer) Analyze(_ context.Context, raw models.RawDocument) (*models.AnalyzedDocument, error) {
	a.calls++
	a.raw = raw
	return a.doc, a.err
}

type fakeSink struct {
	err     error
	records int
}

func (s *fakeSink) Record(context.Context, models.SourceObject, *models.AnalyzedDocument) error {
	s.records++
	return s.err
}

func textReporter(w io.Writer, _ models.SourceObject, doc *models.AnalyzedDocument) error {
	return report.Text(w, doc)
}

var src = models.SourceObject{Bucket: "input-bucketname", Object: "filname.png", MIMEType: "image/png"}

func helloDocument() *models.AnalyzedDocument {
	return &models.AnalyzedDocument{
		Text: "Hello",
		Pages: []models.Page{
			{PageNumber: 1, ImageQualityScores: &models.QualityScores{
				QualityScore:    0.8765432,
				DetectedDefects: []models.DetectedDefect{{Type: "BLUR", Confidence: 0.1234567}},
			}},
			{PageNumber: 2},
		},
	}
}

func TestRunPrintsReport(t *testing.T) {
	analyzer := &fakeAnalyzer{doc: helloDocument()}
	sink := &fakeSink{}
	svc := NewService(fakeFetcher{data: png}, analyzer, textReporter)
	svc.Sink = sink

	var out bytes.Buffer
	doc, err := svc.Run(context.Background(), src, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if doc == nil || doc.Text != "Hello" {
		t.Fatalf("doc = %+v", doc)
	}

	want := "Full document text:\nHello\nThere are 2 page(s) in this document.\n" +
		"Image Quality Scores:\n    Quality score: 0.8765432\n    Detected defects:\n        BLUR: 0.1234567\n"
	if out.String() != want {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", out.String(), want)
	}
	if !bytes.Equal(analyzer.raw.Content, png) || analyzer.raw.MIMEType != "image/png" {
		t.Errorf("analyzer got %d bytes as %q", len(analyzer.raw.Content), analyzer.raw.MIMEType)
	}
	if sink.records != 1 {
		t.Errorf("sink records = %d, want 1", sink.records)
	}
}

func TestRunStopsBeforeReporting(t *testing.T) {
	deadline := fmt.Errorf("%w: rpc timed out", docai.ErrDeadlineExceeded)
	notFound := &gcs.FetchError{Op: "Fetch", Bucket: src.Bucket, Object: src.Object, Err: gcs.ErrObjectNotFound}

	tests := []struct {
		name          string
		fetcher       fakeFetcher
		analyzer      *fakeAnalyzer
		want          error
		stage         Stage
		analyzerCalls int
	}{
		{
			name:     "fetch fails",
			fetcher:  fakeFetcher{err: notFound},
			analyzer: &fakeAnalyzer{doc: helloDocument()},
			want:     gcs.ErrObjectNotFound,
			stage:    StageFetch,
		},
		{
			name:          "analysis deadline exceeded",
			fetcher:       fakeFetcher{data: png},
			analyzer:      &fakeAnalyzer{err: deadline},
			want:          docai.ErrDeadlineExceeded,
			stage:         StageAnalyze,
			analyzerCalls: 1,
		},
		{
			name:     "declared type does not match content",
			fetcher:  fakeFetcher{data: png},
			analyzer: &fakeAnalyzer{doc: helloDocument()},
			want:     docai.ErrMIMEMismatch,
			stage:    StageValidate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reported := false
			reporter := func(w io.Writer, s models.SourceObject, d *models.AnalyzedDocument) error {
				reported = true
				return textReporter(w, s, d)
			}
			sink := &fakeSink{}
			svc := NewService(tt.fetcher, tt.analyzer, reporter)
			svc.Sink = sink

			source := src
			if tt.stage == StageValidate {
				source.MIMEType = "image/jpeg"
			}

			var out bytes.Buffer
			doc, err := svc.Run(context.Background(), source, &out)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var checkErr *CheckError
			if !errors.As(err, &checkErr) || checkErr.Stage != tt.stage {
				t.Fatalf("expected CheckError at stage %s, got %#v", tt.stage, err)
			}
			if doc != nil {
				t.Error("no document expected on failure")
			}
			if reported || out.Len() != 0 {
				t.Errorf("reporter ran or output written: %q", out.String())
			}
			if sink.records != 0 {
				t.Error("sink called after failure")
			}
			if tt.analyzer.calls != tt.analyzerCalls {
				t.Errorf("analyzer calls = %d, want %d", tt.analyzer.calls, tt.analyzerCalls)
			}
		})
	}
}

func TestRunTrustMIMEType(t *testing.T) {
	analyzer := &fakeAnalyzer{doc: &models.AnalyzedDocument{}}
	svc := NewService(fakeFetcher{data: png}, analyzer, textReporter)
	svc.TrustMIMEType = true

	source := src
	source.MIMEType = "image/jpeg"
	if _, err := svc.Run(context.Background(), source, io.Discard); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if analyzer.raw.MIMEType != "image/jpeg" {
		t.Errorf("declared type not passed through: %q", analyzer.raw.MIMEType)
	}
}

func TestRunDetectsMissingMIMEType(t *testing.T) {
	analyzer := &fakeAnalyzer{doc: &models.AnalyzedDocument{}}
	svc := NewService(fakeFetcher{data: png}, analyzer, textReporter)
	svc.TrustMIMEType = true

	source := src
	source.MIMEType = ""
	if _, err := svc.Run(context.Background(), source, io.Discard); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if analyzer.raw.MIMEType != "image/png" {
		t.Errorf("detected type = %q, want image/png", analyzer.raw.MIMEType)
	}
}

func TestRunSinkFailureKeepsReport(t *testing.T) {
	sinkErr := errors.New("sheet is read-only")
	svc := NewService(fakeFetcher{data: png}, &fakeAnalyzer{doc: helloDocument()}, textReporter)
	svc.Sink = &fakeSink{err: sinkErr}

	var out bytes.Buffer
	doc, err := svc.Run(context.Background(), src, &out)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("err = %v, want sink error", err)
	}
	if doc == nil || out.Len() == 0 {
		t.Error("report should be written before the sink runs")
	}
}

func TestRunWithoutReporter(t *testing.T) {
	svc := NewService(fakeFetcher{data: png}, &fakeAnalyzer{}, nil)
	if _, err := svc.Run(context.Background(), src, io.Discard); !errors.Is(err, ErrNoReporter) {
		t.Fatalf("err = %v, want ErrNoReporter", err)
	}
}

func TestRunReportsResolvedMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		trust    bool
		want     string
	}{
		{"detected when not declared", "", false, "image/png"},
		{"parameters stripped", "image/png; charset=binary", false, "image/png"},
		{"trusted type kept", "image/jpeg", true, "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reportedType string
			reporter := func(_ io.Writer, s models.SourceObject, _ *models.AnalyzedDocument) error {
				reportedType = s.MIMEType
				return nil
			}
			svc := NewService(fakeFetcher{data: png}, &fakeAnalyzer{doc: &models.AnalyzedDocument{}}, reporter)
			svc.TrustMIMEType = tt.trust

			source := src
			source.MIMEType = tt.declared
			if _, err := svc.Run(context.Background(), source, io.Discard); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if reportedType != tt.want {
				t.Errorf("reported MIME type = %q, want %q", reportedType, tt.want)
			}
		})
	}
}
