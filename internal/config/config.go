package config

import (
	"errors"
	"fmt"
	"os"

	"google.golang.org/api/option"
	"imagequality/internal/logger"
	"imagequality/pkg/models"
)

type Config struct {
	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string
	GCSSourceBucket            string
	Credentials                Credentials

	// Optional: Google Sheets results sink
	GoogleSheetURL string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Credentials are resolved once at startup and handed to every client.
// When both fields are empty the clients use Application Default Credentials.
type Credentials struct {
	JSON []byte // from GOOGLE_CREDENTIALS
	File string // from GOOGLE_APPLICATION_CREDENTIALS
}

func Load() (*Config, error) {
	config := &Config{
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", "rc"),
		GCSSourceBucket:            getEnv("GCS_SOURCE_BUCKET", ""),
		Credentials: Credentials{
			JSON: []byte(getEnv("GOOGLE_CREDENTIALS", "")),
			File: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		GoogleSheetURL: getEnv("GOOGLE_SHEET_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:  getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:      getEnv("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

// Validate checks the fields a quality check needs. It runs after command
// flags have been applied and reports every missing field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.GoogleCloudProject == "" {
		errs = append(errs, errors.New("GOOGLE_CLOUD_PROJECT (--project) is required"))
	}
	if c.GoogleCloudLocation == "" {
		errs = append(errs, errors.New("GOOGLE_CLOUD_LOCATION (--location) is required"))
	}
	if c.DocumentAIProcessorID == "" {
		errs = append(errs, errors.New("DOCUMENT_AI_PROCESSOR_ID (--processor) is required"))
	}
	if c.DocumentAIProcessorVersion == "" {
		errs = append(errs, errors.New("DOCUMENT_AI_PROCESSOR_VERSION (--version) is required"))
	}
	if c.GCSSourceBucket == "" {
		errs = append(errs, errors.New("GCS_SOURCE_BUCKET (--bucket) is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// ProcessorRef returns the processor version the config points at.
func (c *Config) ProcessorRef() models.ProcessorRef {
	return models.ProcessorRef{
		ProjectID:        c.GoogleCloudProject,
		Location:         c.GoogleCloudLocation,
		ProcessorID:      c.DocumentAIProcessorID,
		ProcessorVersion: c.DocumentAIProcessorVersion,
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// ClientOptions turns the credentials into Google API client options.
// Inline JSON wins over a credentials file.
func (c Credentials) ClientOptions() []option.ClientOption {
	switch {
	case len(c.JSON) > 0:
		return []option.ClientOption{option.WithCredentialsJSON(c.JSON)}
	case c.File != "":
		return []option.ClientOption{option.WithCredentialsFile(c.File)}
	default:
		return nil
	}
}

// Raw returns the credentials JSON, reading the file if needed.
func (c Credentials) Raw() ([]byte, error) {
	if len(c.JSON) > 0 {
		return c.JSON, nil
	}
	if c.File != "" {
		return os.ReadFile(c.File)
	}
	return nil, errors.New("neither GOOGLE_CREDENTIALS nor GOOGLE_APPLICATION_CREDENTIALS is set")
}

// Check verifies that a configured credentials file exists. Commands that
// build API clients call it; Load does not.
func (c Credentials) Check() error {
	if len(c.JSON) == 0 && c.File != "" {
		if _, err := os.Stat(c.File); err != nil {
			return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS is not readable: %w", err)
		}
	}
	return nil
}

// IsSet reports whether explicit credentials were configured.
func (c Credentials) IsSet() bool {
	return len(c.JSON) > 0 || c.File != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
