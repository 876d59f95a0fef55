package docai

import (
	"fmt"
	"mime"

	"github.com/gabriel-vasile/mimetype"
)

// Common spellings that are not registered as aliases by mimetype.
var mimeAliases = map[string]string{
	"image/jpg": "image/jpeg",
	"image/tif": "image/tiff",
}

// DetectMIMEType sniffs the MIME type of content, without parameters.
func DetectMIMEType(content []byte) string {
	detected := mimetype.Detect(content).String()
	if base, _, err := mime.ParseMediaType(detected); err == nil {
		return base
	}
	return detected
}

// ValidateMIMEType checks the declared MIME type against the content and
// returns the type to send. An empty declared type resolves to the
// detected one.
func ValidateMIMEType(content []byte, declared string) (string, error) {
	if len(content) == 0 {
		return "", ErrEmptyDocument
	}

	detected := mimetype.Detect(content)
	if declared == "" {
		return DetectMIMEType(content), nil
	}

	base, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", fmt.Errorf("%w: cannot parse %q: %v", ErrMIMEMismatch, declared, err)
	}
	if canonical, ok := mimeAliases[base]; ok {
		base = canonical
	}
	if !detected.Is(base) {
		return "", fmt.Errorf("%w: declared %s, content is %s", ErrMIMEMismatch, declared, detected.String())
	}
	return base, nil
}
