package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chunkvault/chunkvault/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample chunkvault configuration file with every default
spelled out.

By default, the configuration file is created at
$XDG_CONFIG_HOME/chunkvault/config.yaml. Use --config to specify a
custom path.

Examples:
  # Initialize with default location
  chunkvault config init

  # Initialize with custom path
  chunkvault config init --config /etc/chunkvault/config.yaml

  # Force overwrite existing config
  chunkvault config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize providers and chunking")
	fmt.Println("  2. Upload a file with: chunkvault upload <file>")
	fmt.Printf("  3. Or point at a custom config: chunkvault --config %s upload <file>\n", configPath)

	return nil
}
