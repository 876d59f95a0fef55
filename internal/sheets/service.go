package sheets

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"imagequality/internal/config"
	"imagequality/internal/logger"
	"imagequality/pkg/models"
)

// DefaultSheetName is the worksheet quality results are appended to.
const DefaultSheetName = "Image Quality"

var headers = []interface{}{
	"Processed At", "Source", "Page", "Quality Score", "Defect", "Confidence",
}

// Service appends quality check results to a Google Sheet.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	sheetName     string
	log           zerolog.Logger
}

// NewSheetsService creates a Sheets service for the spreadsheet at sheetURL.
// The credentials must be a service account key.
func NewSheetsService(ctx context.Context, sheetURL, sheetName string, creds config.Credentials) (*Service, error) {
	const op = "NewSheetsService"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	raw, err := creds.Raw()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(raw, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	return NewSheetsServiceWithOptions(ctx, spreadsheetID, sheetName, option.WithHTTPClient(jwtConfig.Client(ctx)))
}

// NewSheetsServiceWithOptions creates a Sheets service with explicit client options (for testing).
func NewSheetsServiceWithOptions(ctx context.Context, spreadsheetID, sheetName string, opts ...option.ClientOption) (*Service, error) {
	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewSheetsService: failed to create sheets service: %w", err)
	}
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	log := logger.WithComponent("sheets")
	log.Debug().Str("spreadsheet_id", spreadsheetID).Str("sheet", sheetName).Msg("Sheets service ready")

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		log:           log,
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	re := regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	matches := re.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// Record appends one row per detected defect of doc.
func (s *Service) Record(ctx context.Context, source models.SourceObject, doc *models.AnalyzedDocument) error {
	const op = "Record"

	rows := BuildRows(source, doc, time.Now())
	if len(rows) == 0 {
		s.log.Info().Str("source", source.URI()).Msg("No quality scores to record")
		return nil
	}

	if err := s.ensureSheetWithHeaders(ctx); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		s.sheetName+"!A:F",
		&sheets.ValueRange{Values: rows},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Str("sheet", s.sheetName).
		Int("rows_written", len(rows)).
		Msg("Quality scores written to Google Sheet")

	return nil
}

// BuildRows flattens doc into sheet rows. Pages without scores are skipped;
// a page with scores but no defects yields a single row with empty defect cells.
func BuildRows(source models.SourceObject, doc *models.AnalyzedDocument, processedAt time.Time) [][]interface{} {
	stamp := processedAt.UTC().Format(time.RFC3339)
	var rows [][]interface{}

	for _, page := range doc.Pages {
		if !page.HasQualityScores() {
			continue
		}
		score := float64(page.ImageQualityScores.QualityScore)
		if len(page.ImageQualityScores.DetectedDefects) == 0 {
			rows = append(rows, []interface{}{stamp, source.URI(), page.PageNumber, score, "", ""})
			continue
		}
		for _, defect := range page.ImageQualityScores.DetectedDefects {
			rows = append(rows, []interface{}{
				stamp,                      // A: Processed At
				source.URI(),               // B: Source
				page.PageNumber,            // C: Page
				score,                      // D: Quality Score
				defect.Type,                // E: Defect
				float64(defect.Confidence), // F: Confidence
			})
		}
	}

	return rows
}

// ensureSheetWithHeaders creates the worksheet and header row if missing.
func (s *Service) ensureSheetWithHeaders(ctx context.Context) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	sheetExists := false
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == s.sheetName {
			sheetExists = true
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", s.sheetName).Msg("Creating new sheet")
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: s.sheetName}}},
			},
		}
		if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
	}

	headerRange := s.sheetName + "!A1:F1"
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", s.sheetName).Msg("Adding headers to sheet")
	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{headers}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	return nil
}
