package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/filegate/filegate/internal/cli/prompt"
	"github.com/filegate/filegate/pkg/api"
	"github.com/filegate/filegate/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample filegate configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/filegate/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  filegate init

  # Initialize with custom path
  filegate init --config /etc/filegate/config.yaml

  # Force overwrite existing config
  filegate init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Overwrite existing config at %s?", configPath), initForce)
		if err != nil {
			if prompt.IsAborted(err) {
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}
	}

	cfg := config.GetDefaultConfig()
	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: filegate start")
	fmt.Printf("  3. Or specify custom config: filegate start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  The server refuses to start without a JWT secret of at least 32 characters.")
	fmt.Println("  Generate one and pass it through an environment variable:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Printf("    export %s=$(openssl rand -hex 32)\n", api.EnvJWTSecret)

	return nil
}
