// Package report renders analyzed documents for people and for scripts.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"imagequality/pkg/models"
)

// Text writes the OCR text, the page count and the quality diagnostics of
// every page that has them. Pages without scores produce no output.
// Scores and confidences are printed with 7 decimal places in service order.
func Text(w io.Writer, doc *models.AnalyzedDocument) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "Full document text:")
	fmt.Fprintln(bw, doc.Text)
	fmt.Fprintf(bw, "There are %d page(s) in this document.\n", len(doc.Pages))

	for _, page := range doc.Pages {
		if !page.HasQualityScores() {
			continue
		}
		fmt.Fprintln(bw, "Image Quality Scores:")
		writeQualityScores(bw, page.ImageQualityScores)
	}

	return bw.Flush()
}

func writeQualityScores(w io.Writer, scores *models.QualityScores) {
	fmt.Fprintf(w, "    Quality score: %.7f\n", scores.QualityScore)
	fmt.Fprintln(w, "    Detected defects:")
	for _, defect := range scores.DetectedDefects {
		fmt.Fprintf(w, "        %s: %.7f\n", defect.Type, defect.Confidence)
	}
}

// Output is the JSON document written when --json is used.
type Output struct {
	Source             string       `json:"source"`
	Processor          string       `json:"processor,omitempty"`
	MIMEType           string       `json:"mime_type,omitempty"`
	Text               string       `json:"text"`
	PageCount          int          `json:"page_count"`
	Pages              []PageOutput `json:"pages"`
	ProcessedAt        time.Time    `json:"processed_at"`
	ProcessingDuration string       `json:"processing_duration,omitempty"`
}

// PageOutput is one page of Output. ImageQualityScores is null when the
// service returned no scores for the page.
type PageOutput struct {
	PageNumber         int                  `json:"page_number"`
	ImageQualityScores *QualityScoresOutput `json:"image_quality_scores"`
}

type QualityScoresOutput struct {
	QualityScore    float32        `json:"quality_score"`
	DetectedDefects []DefectOutput `json:"detected_defects"`
}

type DefectOutput struct {
	Type       string  `json:"type"`
	Confidence float32 `json:"confidence"`
}

// NewOutput builds the JSON view of doc.
func NewOutput(doc *models.AnalyzedDocument) Output {
	out := Output{
		Text:      doc.Text,
		PageCount: len(doc.Pages),
		Pages:     make([]PageOutput, 0, len(doc.Pages)),
	}
	for _, page := range doc.Pages {
		po := PageOutput{PageNumber: page.PageNumber}
		if page.HasQualityScores() {
			q := &QualityScoresOutput{
				QualityScore:    page.ImageQualityScores.QualityScore,
				DetectedDefects: make([]DefectOutput, 0, len(page.ImageQualityScores.DetectedDefects)),
			}
			for _, d := range page.ImageQualityScores.DetectedDefects {
				q.DetectedDefects = append(q.DetectedDefects, DefectOutput{Type: d.Type, Confidence: d.Confidence})
			}
			po.ImageQualityScores = q
		}
		out.Pages = append(out.Pages, po)
	}
	return out
}

// JSON writes out as indented JSON followed by a newline.
func JSON(w io.Writer, out Output) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
