// Package qualitycheck runs one image through fetch, analysis and reporting.
//
// The steps run strictly in order and the first failure ends the run, so a
// failed fetch or analysis never produces partial report output.
package qualitycheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"imagequality/internal/docai"
	"imagequality/internal/logger"
	"imagequality/pkg/models"
)

// Fetcher downloads a stored object.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, object string) ([]byte, error)
}

// Analyzer turns raw content into an analyzed document.
type Analyzer interface {
	Analyze(ctx context.Context, raw models.RawDocument) (*models.AnalyzedDocument, error)
}

// Reporter writes an analyzed document.
type Reporter func(w io.Writer, source models.SourceObject, doc *models.AnalyzedDocument) error

// Sink stores results after they have been reported.
type Sink interface {
	Record(ctx context.Context, source models.SourceObject, doc *models.AnalyzedDocument) error
}

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageValidate Stage = "validate"
	StageAnalyze  Stage = "analyze"
	StageReport   Stage = "report"
	StageRecord   Stage = "record"
)

// ErrNoReporter is returned by Run when the service has no reporter.
var ErrNoReporter = errors.New("no reporter configured")

// CheckError records the stage that failed. Err is the collaborator's
// error, unchanged.
type CheckError struct {
	Stage  Stage
	Source string
	Err    error
}

// Error implements the error interface.
func (e *CheckError) Error() string {
	return fmt.Sprintf("quality check %s of %s failed: %v", e.Stage, e.Source, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *CheckError) Unwrap() error {
	return e.Err
}

// Service wires the pipeline collaborators.
type Service struct {
	Fetcher  Fetcher
	Analyzer Analyzer
	Reporter Reporter

	// Sink is optional.
	Sink Sink

	// TrustMIMEType skips checking the declared MIME type against the content.
	TrustMIMEType bool

	log zerolog.Logger
}

// NewService creates a service without a sink.
func NewService(fetcher Fetcher, analyzer Analyzer, reporter Reporter) *Service {
	return &Service{
		Fetcher:  fetcher,
		Analyzer: analyzer,
		Reporter: reporter,
		log:      logger.WithComponent("quality-check"),
	}
}

// Run checks one object and writes the report to w. It returns the analyzed
// document so callers can reuse it.
func (s *Service) Run(ctx context.Context, src models.SourceObject, w io.Writer) (*models.AnalyzedDocument, error) {
	if s.Reporter == nil {
		return nil, ErrNoReporter
	}

	uri := src.URI()
	fail := func(stage Stage, err error) error {
		s.log.Error().Err(err).Str("stage", string(stage)).Str("source", uri).Msg("Quality check failed")
		return &CheckError{Stage: stage, Source: uri, Err: err}
	}

	startTime := time.Now()
	s.log.Info().Str("source", uri).Msg("Starting quality check")

	content, err := s.Fetcher.Fetch(ctx, src.Bucket, src.Object)
	if err != nil {
		return nil, fail(StageFetch, err)
	}

	mimeType := src.MIMEType
	if !s.TrustMIMEType || mimeType == "" {
		mimeType, err = docai.ValidateMIMEType(content, src.MIMEType)
		if err != nil {
			return nil, fail(StageValidate, err)
		}
	}

	doc, err := s.Analyzer.Analyze(ctx, models.RawDocument{Content: content, MIMEType: mimeType})
	if err != nil {
		return nil, fail(StageAnalyze, err)
	}

	// Report and record the type that was actually sent.
	src.MIMEType = mimeType

	if err := s.Reporter(w, src, doc); err != nil {
		return nil, fail(StageReport, err)
	}

	if s.Sink != nil {
		if err := s.Sink.Record(ctx, src, doc); err != nil {
			return doc, fail(StageRecord, err)
		}
	}

	s.log.Info().
		Str("source", uri).
		Str("mime_type", mimeType).
		Int("pages", len(doc.Pages)).
		Dur("duration", time.Since(startTime)).
		Msg("Quality check completed")

	return doc, nil
}
