package models

import "fmt"

// ProcessorRef identifies a Document AI processor version.
type ProcessorRef struct {
	ProjectID        string
	Location         string // "us", "eu", ...
	ProcessorID      string
	ProcessorVersion string // e.g. "rc", "stable" or a full version ID
}

// SourceObject identifies the image to fetch from Cloud Storage.
type SourceObject struct {
	Bucket   string
	Object   string
	MIMEType string // may be empty; detected from content when not set
}

// URI returns the gs:// URI of the object.
func (s SourceObject) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.Bucket, s.Object)
}

// RawDocument is fetched content paired with its declared MIME type.
type RawDocument struct {
	Content  []byte
	MIMEType string
}

// ProcessOptions controls what the processor computes in addition to OCR.
type ProcessOptions struct {
	EnableImageQualityScores bool
}

// AnalyzedDocument is the processor's result for one document.
type AnalyzedDocument struct {
	Text  string
	Pages []Page
}

// Page holds per-page diagnostics. ImageQualityScores is nil when the
// service returned no scores for the page.
type Page struct {
	PageNumber         int
	ImageQualityScores *QualityScores
}

// HasQualityScores reports whether the service returned scores for the page.
func (p Page) HasQualityScores() bool {
	return p.ImageQualityScores != nil
}

// QualityScores is the overall image quality of a page and the defects found.
type QualityScores struct {
	QualityScore    float32          // 0.0 - 1.0
	DetectedDefects []DetectedDefect // in service order
}

// DetectedDefect is a defect label (e.g. "quality/defect_blurry") with its confidence.
type DetectedDefect struct {
	Type       string
	Confidence float32
}
