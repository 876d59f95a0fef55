package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"imagequality/internal/config"
	"imagequality/internal/docai"
	"imagequality/internal/gcs"
	"imagequality/internal/logger"
	"imagequality/internal/ocr"
	"imagequality/internal/qualitycheck"
	"imagequality/internal/report"
	"imagequality/internal/sheets"
	"imagequality/pkg/models"
)

const (
	engineDocumentAI = "documentai"
	engineVision     = "vision"
)

var checkCmd = &cobra.Command{
	Use:   "check [object | gs://bucket/object]",
	Short: "Run an image from Cloud Storage through Document AI quality scoring",
	Long: `Download one image from Google Cloud Storage, send it to a Document AI
processor version with image quality scoring enabled and print the OCR
text, the page count and the quality score and detected defects of every
page.

Exactly one ProcessDocument call is made. If it fails, nothing is printed
to the output and the command exits non-zero.

Environment variables (flags override them):
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_CLOUD_PROJECT - Your Google Cloud project ID
  GOOGLE_CLOUD_LOCATION - Processor location (us, eu, ...; default us)
  DOCUMENT_AI_PROCESSOR_ID - Document AI processor ID
  DOCUMENT_AI_PROCESSOR_VERSION - Processor version ID (default rc)
  GCS_SOURCE_BUCKET - Bucket holding the image
  GOOGLE_SHEET_URL - Optional spreadsheet to append results to`,
	Example: `  # Check an image using the environment configuration
  imagequality check scans/receipt.png --mime-type image/png

  # Address the object with a gs:// URI and a full processor version name
  imagequality check gs://input-bucket/scan.jpg \
    --processor-name projects/my-project/locations/eu/processors/abc123/processorVersions/rc

  # Write the result as JSON to a file
  imagequality check scan.tiff --json -o result.json

  # Compare OCR text with Cloud Vision (no quality scores)
  imagequality check scan.png --engine vision`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

// checkOptions holds the command line settings of a check run.
type checkOptions struct {
	project       string
	location      string
	processor     string
	version       string
	processorName string
	bucket        string
	object        string
	mimeType      string
	qualityScores bool
	trustMIMEType bool
	engine        string
	jsonOutput    bool
	outputPath    string
	timeoutSecs   int
	sheetURL      string
	sheetName     string
}

func init() {
	rootCmd.AddCommand(checkCmd)

	flags := checkCmd.Flags()
	flags.String("project", "", "Google Cloud project ID (overrides GOOGLE_CLOUD_PROJECT)")
	flags.String("location", "", "Processor location, e.g. us or eu (overrides GOOGLE_CLOUD_LOCATION)")
	flags.String("processor", "", "Document AI processor ID (overrides DOCUMENT_AI_PROCESSOR_ID)")
	flags.String("version", "", "Processor version ID (overrides DOCUMENT_AI_PROCESSOR_VERSION)")
	flags.String("processor-name", "", "Full processor version resource name; replaces project, location, processor and version")
	flags.String("bucket", "", "Source bucket (overrides GCS_SOURCE_BUCKET)")
	flags.String("object", "", "Source object name")
	flags.String("mime-type", "", "MIME type of the image (detected from content when empty)")
	flags.Bool("quality-scores", true, "Ask the processor for image quality scores")
	flags.Bool("trust-mime-type", false, "Send the declared MIME type without checking it against the content")
	flags.String("engine", engineDocumentAI, "Analysis engine: documentai or vision")
	flags.Bool("json", false, "Output as JSON")
	flags.StringP("output", "o", "", "Output file path (default: stdout)")
	flags.Int("timeout", 300, "Processing timeout in seconds")
	flags.String("sheet-url", "", "Append quality scores to this Google Sheet (overrides GOOGLE_SHEET_URL)")
	flags.String("sheet-name", sheets.DefaultSheetName, "Worksheet name used with --sheet-url")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("check")

	opts := readCheckFlags(cmd)
	if len(args) == 1 {
		bucket, object := parseSource(args[0])
		if bucket != "" {
			opts.bucket = bucket
		}
		opts.object = object
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyCheckOptions(cfg, opts); err != nil {
		return err
	}
	if err := cfg.Credentials.Check(); err != nil {
		log.Error().Err(err).Msg("Invalid credentials")
		return err
	}
	if err := validateCheck(cfg, opts); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	src := models.SourceObject{Bucket: cfg.GCSSourceBucket, Object: opts.object, MIMEType: opts.mimeType}

	log.Info().
		Str("source", src.URI()).
		Str("engine", opts.engine).
		Str("mime_type", src.MIMEType).
		Bool("quality_scores", opts.qualityScores).
		Str("output", opts.outputPath).
		Bool("json", opts.jsonOutput).
		Int("timeout", opts.timeoutSecs).
		Msg("Starting quality check")

	if !cfg.Credentials.IsSet() {
		log.Debug().Msg("No explicit credentials, using Application Default Credentials")
	}

	ctx, cancel := createContextWithTimeout(opts.timeoutSecs, log)
	defer cancel()

	fetcher, err := gcs.NewGCSFetcher(ctx, cfg.Credentials.ClientOptions()...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create storage client")
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	defer closeQuietly(fetcher, "storage client", log)

	analyzer, processorName, err := createAnalyzer(ctx, cfg, opts, log)
	if err != nil {
		return err
	}
	defer closeQuietly(analyzer, "analysis client", log)

	startTime := time.Now()
	svc := qualitycheck.NewService(fetcher, analyzer, newReporter(opts.jsonOutput, processorName, startTime))
	svc.TrustMIMEType = opts.trustMIMEType

	if cfg.GoogleSheetURL != "" {
		sink, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL, opts.sheetName, cfg.Credentials)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create Sheets service")
			return fmt.Errorf("failed to create Sheets service: %w", err)
		}
		svc.Sink = sink
	}

	// The report is buffered so a failed run never leaves partial output.
	var buf bytes.Buffer
	doc, runErr := svc.Run(ctx, src, &buf)
	if doc == nil {
		return handleCheckError(runErr, log)
	}

	if err := writeOutput(buf.Bytes(), opts.outputPath, log); err != nil {
		return err
	}
	if runErr != nil {
		return handleCheckError(runErr, log)
	}

	log.Info().
		Int("pages", len(doc.Pages)).
		Dur("duration", time.Since(startTime)).
		Msg("Quality check finished")
	return nil
}

func readCheckFlags(cmd *cobra.Command) checkOptions {
	flags := cmd.Flags()
	var o checkOptions
	o.project, _ = flags.GetString("project")
	o.location, _ = flags.GetString("location")
	o.processor, _ = flags.GetString("processor")
	o.version, _ = flags.GetString("version")
	o.processorName, _ = flags.GetString("processor-name")
	o.bucket, _ = flags.GetString("bucket")
	o.object, _ = flags.GetString("object")
	o.mimeType, _ = flags.GetString("mime-type")
	o.qualityScores, _ = flags.GetBool("quality-scores")
	o.trustMIMEType, _ = flags.GetBool("trust-mime-type")
	o.engine, _ = flags.GetString("engine")
	o.jsonOutput, _ = flags.GetBool("json")
	o.outputPath, _ = flags.GetString("output")
	o.timeoutSecs, _ = flags.GetInt("timeout")
	o.sheetURL, _ = flags.GetString("sheet-url")
	o.sheetName, _ = flags.GetString("sheet-name")
	return o
}

// parseSource splits a gs:// URI into bucket and object. Anything else is
// taken as an object name in the configured bucket.
func parseSource(arg string) (bucket, object string) {
	rest, ok := strings.CutPrefix(arg, "gs://")
	if !ok {
		return "", arg
	}
	bucket, object, _ = strings.Cut(rest, "/")
	return bucket, object
}

// applyCheckOptions overlays non-empty flag values on cfg.
func applyCheckOptions(cfg *config.Config, o checkOptions) error {
	if o.processorName != "" {
		ref, err := docai.ParseProcessorVersionName(o.processorName)
		if err != nil {
			return err
		}
		cfg.GoogleCloudProject = ref.ProjectID
		cfg.GoogleCloudLocation = ref.Location
		cfg.DocumentAIProcessorID = ref.ProcessorID
		cfg.DocumentAIProcessorVersion = ref.ProcessorVersion
	}

	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&cfg.GoogleCloudProject, o.project)
	overlay(&cfg.GoogleCloudLocation, o.location)
	overlay(&cfg.DocumentAIProcessorID, o.processor)
	overlay(&cfg.DocumentAIProcessorVersion, o.version)
	overlay(&cfg.GCSSourceBucket, o.bucket)
	overlay(&cfg.GoogleSheetURL, o.sheetURL)
	return nil
}

func validateCheck(cfg *config.Config, o checkOptions) error {
	if o.object == "" {
		return errors.New("an object name is required (argument or --object)")
	}
	if o.timeoutSecs <= 0 {
		return fmt.Errorf("--timeout must be positive, got %d", o.timeoutSecs)
	}

	switch o.engine {
	case engineDocumentAI:
		return cfg.Validate()
	case engineVision:
		if cfg.GCSSourceBucket == "" {
			return errors.New("GCS_SOURCE_BUCKET (--bucket) is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown engine %q (want %s or %s)", o.engine, engineDocumentAI, engineVision)
	}
}

// analyzeCloser is an analyzer owning a client connection.
type analyzeCloser interface {
	qualitycheck.Analyzer
	io.Closer
}

// createAnalyzer builds the engine selected by --engine and returns it with
// the name reported in JSON output.
func createAnalyzer(ctx context.Context, cfg *config.Config, o checkOptions, log zerolog.Logger) (analyzeCloser, string, error) {
	if o.engine == engineVision {
		analyzer, err := ocr.NewVisionAnalyzer(ctx, cfg.Credentials.ClientOptions()...)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create Vision client")
			return nil, "", fmt.Errorf("failed to create Vision client: %w", err)
		}
		return analyzer, "cloud-vision", nil
	}

	processor, err := docai.NewProcessor(ctx, docai.Config{
		Processor:     cfg.ProcessorRef(),
		Options:       models.ProcessOptions{EnableImageQualityScores: o.qualityScores},
		Timeout:       time.Duration(o.timeoutSecs) * time.Second,
		ClientOptions: cfg.Credentials.ClientOptions(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Document AI client")
		return nil, "", fmt.Errorf("failed to create Document AI client: %w", err)
	}

	log.Debug().
		Str("processor", processor.Name()).
		Str("endpoint", docai.Endpoint(cfg.GoogleCloudLocation)).
		Msg("Document AI processor ready")
	return processor, processor.Name(), nil
}

func newReporter(jsonOutput bool, processorName string, startTime time.Time) qualitycheck.Reporter {
	if !jsonOutput {
		return func(w io.Writer, _ models.SourceObject, doc *models.AnalyzedDocument) error {
			return report.Text(w, doc)
		}
	}
	return func(w io.Writer, src models.SourceObject, doc *models.AnalyzedDocument) error {
		out := report.NewOutput(doc)
		out.Source = src.URI()
		out.Processor = processorName
		out.MIMEType = src.MIMEType
		out.ProcessedAt = time.Now()
		out.ProcessingDuration = time.Since(startTime).String()
		return report.JSON(w, out)
	}
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling quality check")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleCheckError provides user-friendly error messages for failed checks.
// The original error stays in the chain.
func handleCheckError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Quality check failed")

	switch {
	case errors.Is(err, docai.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("Document AI did not answer in time. Try increasing --timeout: %w", err)
	case errors.Is(err, docai.ErrCanceled) || errors.Is(err, context.Canceled):
		return fmt.Errorf("quality check was canceled: %w", err)
	case errors.Is(err, gcs.ErrObjectNotFound):
		return fmt.Errorf("image not found in Cloud Storage. Check the bucket and object name: %w", err)
	case errors.Is(err, gcs.ErrAccessDenied):
		return fmt.Errorf("access to the Cloud Storage object was denied. The service account needs 'Storage Object Viewer': %w", err)
	case errors.Is(err, gcs.ErrObjectTooLarge):
		return fmt.Errorf("image is too large to send inline: %w", err)
	case errors.Is(err, docai.ErrMIMEMismatch):
		return fmt.Errorf("declared MIME type does not match the image. Fix --mime-type or pass --trust-mime-type: %w", err)
	case errors.Is(err, docai.ErrEmptyDocument) || errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("the Cloud Storage object is empty: %w", err)
	case errors.Is(err, docai.ErrPermissionDenied):
		return fmt.Errorf("permission denied. The service account needs the 'Document AI API User' role: %w", err)
	case errors.Is(err, docai.ErrProcessorNotFound):
		return fmt.Errorf("processor version not found. Check project, location, processor and version: %w", err)
	case errors.Is(err, docai.ErrInvalidArgument):
		return fmt.Errorf("Document AI rejected the request: %w", err)
	case errors.Is(err, docai.ErrQuotaExceeded):
		return fmt.Errorf("Document AI quota exceeded. Check your project quotas in the Google Cloud Console: %w", err)
	case errors.Is(err, docai.ErrUnavailable):
		return fmt.Errorf("Document AI is unavailable. Try again later: %w", err)
	case errors.Is(err, ocr.ErrUnsupportedFormat):
		return fmt.Errorf("Cloud Vision only accepts images: %w", err)
	default:
		return fmt.Errorf("quality check failed: %w", err)
	}
}

func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Quality report written to file")
	return nil
}

func closeQuietly(c io.Closer, what string, log zerolog.Logger) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("client", what).Msg("Failed to close client")
	}
}
