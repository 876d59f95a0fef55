package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"imagequality/internal/config"
	"imagequality/internal/docai"
	"imagequality/internal/logger"
)

var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Print the Document AI endpoint and processor version a check would use",
	Long: `Resolve the configured location and processor into the regional API
endpoint and the processor version resource name, without calling any
Google Cloud API.`,
	Example: `  imagequality endpoint
  imagequality endpoint --location eu --processor abc123 --version pretrained-ocr-v2.0-2023-06-02`,
	Args: cobra.NoArgs,
	RunE: runEndpoint,
}

func init() {
	rootCmd.AddCommand(endpointCmd)

	endpointCmd.Flags().String("project", "", "Google Cloud project ID (overrides GOOGLE_CLOUD_PROJECT)")
	endpointCmd.Flags().String("location", "", "Processor location (overrides GOOGLE_CLOUD_LOCATION)")
	endpointCmd.Flags().String("processor", "", "Document AI processor ID (overrides DOCUMENT_AI_PROCESSOR_ID)")
	endpointCmd.Flags().String("version", "", "Processor version ID (overrides DOCUMENT_AI_PROCESSOR_VERSION)")
}

func runEndpoint(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("endpoint")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyCheckOptions(cfg, readEndpointFlags(cmd)); err != nil {
		return err
	}

	endpoint := docai.Endpoint(cfg.GoogleCloudLocation)
	log.Debug().Str("location", cfg.GoogleCloudLocation).Str("endpoint", endpoint).Msg("Resolved endpoint")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Endpoint: %s\n", endpoint)
	if cfg.GoogleCloudProject != "" && cfg.DocumentAIProcessorID != "" {
		fmt.Fprintf(out, "Processor: %s\n", docai.ProcessorVersionName(cfg.ProcessorRef()))
	}
	return nil
}

// readEndpointFlags reads the processor flags endpoint shares with check.
func readEndpointFlags(cmd *cobra.Command) checkOptions {
	flags := cmd.Flags()
	var o checkOptions
	o.project, _ = flags.GetString("project")
	o.location, _ = flags.GetString("location")
	o.processor, _ = flags.GetString("processor")
	o.version, _ = flags.GetString("version")
	return o
}
