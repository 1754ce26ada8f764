// Package user implements user management subcommands.
package user

import (
	"github.com/spf13/cobra"
)

// Cmd is the user subcommand.
var Cmd = &cobra.Command{
	Use:   "user",
	Short: "User management",
	Long: `Manage registered users in the metadata database.

Demo sessions provision their own throwaway users and are not managed here.

Subcommands:
  create  Create a user (prompts for password)
  list    List users with their storage usage`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(listCmd)
}
