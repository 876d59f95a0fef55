package docai

import (
	"fmt"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"imagequality/pkg/models"
)

// DefaultLocation is used when no processing location is configured.
const DefaultLocation = "us"

// Endpoint returns the regional Document AI endpoint for a location,
// e.g. "eu" -> "eu-documentai.googleapis.com:443".
func Endpoint(location string) string {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		loc = DefaultLocation
	}
	return fmt.Sprintf("%s-documentai.googleapis.com:443", loc)
}

// ProcessorVersionName returns the resource name of a processor version.
func ProcessorVersionName(ref models.ProcessorRef) string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
		ref.ProjectID, ref.Location, ref.ProcessorID, ref.ProcessorVersion)
}

// ParseProcessorVersionName is the inverse of ProcessorVersionName.
func ParseProcessorVersionName(name string) (models.ProcessorRef, error) {
	parts := strings.Split(strings.Trim(name, "/"), "/")
	if len(parts) != 8 ||
		parts[0] != "projects" || parts[2] != "locations" ||
		parts[4] != "processors" || parts[6] != "processorVersions" {
		return models.ProcessorRef{}, fmt.Errorf("%w: %q", ErrInvalidProcessorName, name)
	}
	for _, i := range []int{1, 3, 5, 7} {
		if parts[i] == "" {
			return models.ProcessorRef{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidProcessorName, name)
		}
	}
	return models.ProcessorRef{
		ProjectID:        parts[1],
		Location:         parts[3],
		ProcessorID:      parts[5],
		ProcessorVersion: parts[7],
	}, nil
}

// BuildRequest packages raw content for a processor version. Content and
// MIME type are passed through unchanged and enableQualityScores is set
// as given; the service does any further validation.
func BuildRequest(ref models.ProcessorRef, raw models.RawDocument, enableQualityScores bool) *documentaipb.ProcessRequest {
	return &documentaipb.ProcessRequest{
		Name: ProcessorVersionName(ref),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  raw.Content,
				MimeType: raw.MIMEType,
			},
		},
		ProcessOptions: &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				EnableImageQualityScores: enableQualityScores,
			},
		},
	}
}
