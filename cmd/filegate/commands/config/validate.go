package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filegate/filegate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the filegate configuration.

Loads the configuration the same way the server does, including defaults and
environment variable overrides, and reports the first validation failure.
Connectivity to the database, Redis, and the blob store is not checked.

Examples:
  # Validate default config
  filegate config validate

  # Validate specific file
  filegate config validate --config /etc/filegate/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	if _, err := config.Load(configPath); err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	return nil
}
