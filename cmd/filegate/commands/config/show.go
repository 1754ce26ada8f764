package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/filegate/filegate/internal/cli/output"
	"github.com/filegate/filegate/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective filegate configuration after defaults and
environment overrides are applied.

Secrets provided through environment variables are not echoed back.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show effective config as YAML
  filegate config show

  # Show as JSON
  filegate config show --output json

  # Show specific config file
  filegate config show --config /etc/filegate/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
