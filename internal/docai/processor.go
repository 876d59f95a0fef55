// Package docai runs images through a Document AI processor version with
// image quality scoring.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//     (Application Default Credentials are used when neither is set)
//
// Each Analyze call makes exactly one synchronous ProcessDocument request
// against the regional endpoint of the processor's location. The client's
// default retry policy is disabled; callers that want retries add them.
package docai

import (
	"context"
	"fmt"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"imagequality/internal/logger"
	"imagequality/pkg/models"
)

// DefaultTimeout bounds a single ProcessDocument call.
const DefaultTimeout = 120 * time.Second

// DocumentProcessor is the subset of the Document AI client used here.
// *documentai.DocumentProcessorClient satisfies it.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// Config holds configuration for a processor.
type Config struct {
	// Processor is the processor version to call.
	Processor models.ProcessorRef

	// Options controls quality scoring.
	Options models.ProcessOptions

	// Timeout is the maximum time to wait for one call. Zero means DefaultTimeout.
	Timeout time.Duration

	// ClientOptions carries credentials; the regional endpoint is added by NewProcessor.
	ClientOptions []option.ClientOption
}

// Processor submits raw documents to Document AI.
type Processor struct {
	client DocumentProcessor
	config Config
	name   string
	log    zerolog.Logger
}

// NewProcessor creates a processor with a client bound to the regional
// endpoint of config.Processor.Location.
func NewProcessor(ctx context.Context, config Config) (*Processor, error) {
	const op = "NewProcessor"

	opts := append([]option.ClientOption{option.WithEndpoint(Endpoint(config.Processor.Location))}, config.ClientOptions...)
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, WrapProcessingError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Processor.Location))
	}

	return NewProcessorWithClient(config, client), nil
}

// NewProcessorWithClient creates a processor with an explicit client (for testing).
func NewProcessorWithClient(config Config, client DocumentProcessor) *Processor {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Processor{
		client: client,
		config: config,
		name:   ProcessorVersionName(config.Processor),
		log:    logger.WithComponent("document-ai"),
	}
}

// Name returns the processor version resource name requests are sent to.
func (p *Processor) Name() string {
	return p.name
}

// Analyze submits raw to the processor and returns the analyzed document.
func (p *Processor) Analyze(ctx context.Context, raw models.RawDocument) (*models.AnalyzedDocument, error) {
	req := BuildRequest(p.config.Processor, raw, p.config.Options.EnableImageQualityScores)

	p.log.Debug().
		Str("processor", p.name).
		Str("mime_type", raw.MIMEType).
		Int("bytes", len(raw.Content)).
		Bool("image_quality_scores", p.config.Options.EnableImageQualityScores).
		Msg("Submitting document")

	doc, err := p.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	result := documentFromProto(doc)
	p.log.Info().
		Int("pages", len(result.Pages)).
		Int("text_length", len(result.Text)).
		Msg("Document AI processing completed")

	return result, nil
}

// Invoke performs one ProcessDocument call and returns the raw document.
func (p *Processor) Invoke(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
	const op = "Invoke"

	callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	startTime := time.Now()
	resp, err := p.client.ProcessDocument(callCtx, req, noRetry)
	if err != nil {
		p.log.Error().
			Err(err).
			Str("processor", req.GetName()).
			Dur("duration", time.Since(startTime)).
			Msg("ProcessDocument failed")
		return nil, &ProcessingError{Op: op, Err: classifyCallError(err), ProcessorName: req.GetName()}
	}

	if resp.GetDocument() == nil {
		return nil, WrapProcessingError(op, ErrProcessingFailed, "no document in response")
	}
	return resp.GetDocument(), nil
}

// Close closes the underlying Document AI client.
func (p *Processor) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// noRetry replaces the client's default retry policy.
var noRetry = gax.WithRetry(func() gax.Retryer { return nil })

// documentFromProto copies the parts of a Document this tool reports on.
func documentFromProto(doc *documentaipb.Document) *models.AnalyzedDocument {
	result := &models.AnalyzedDocument{
		Text:  doc.GetText(),
		Pages: make([]models.Page, 0, len(doc.GetPages())),
	}

	for i, page := range doc.GetPages() {
		p := models.Page{PageNumber: int(page.GetPageNumber())}
		if p.PageNumber == 0 {
			p.PageNumber = i + 1
		}

		if scores := page.GetImageQualityScores(); scores != nil {
			q := &models.QualityScores{
				QualityScore:    scores.GetQualityScore(),
				DetectedDefects: make([]models.DetectedDefect, 0, len(scores.GetDetectedDefects())),
			}
			for _, defect := range scores.GetDetectedDefects() {
				q.DetectedDefects = append(q.DetectedDefects, models.DetectedDefect{
					Type:       defect.GetType(),
					Confidence: defect.GetConfidence(),
				})
			}
			p.ImageQualityScores = q
		}

		result.Pages = append(result.Pages, p)
	}

	return result
}
