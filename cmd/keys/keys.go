// Package keys provides the keys command.
package keys

import (
	"github.com/spf13/cobra"

	"github.com/archlens/archlens/cmd/keys/subcommands"
)

// KeysCmd is the parent command for API key management.
var KeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long: "Manage API keys for the review service.\n\n" +
		"API keys authenticate client requests against the HTTP API. Keys are " +
		"stored hashed; the plaintext is shown exactly once at creation. These " +
		"commands operate on the server's database directly and must run on the " +
		"host where 'archlens serve' runs.",
}

func init() {
	KeysCmd.AddCommand(subcommands.CreateCmd)
	KeysCmd.AddCommand(subcommands.ListCmd)
	KeysCmd.AddCommand(subcommands.DisableCmd)
}
