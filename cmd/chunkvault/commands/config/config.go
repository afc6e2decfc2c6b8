// Package config implements the chunkvault config command group.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration management.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage chunkvault configuration",
	Long: `Manage the chunkvault configuration file.

Subcommands show the effective configuration, generate a JSON schema
for editor validation, and write a sample configuration file.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
	Cmd.AddCommand(initCmd)
}
