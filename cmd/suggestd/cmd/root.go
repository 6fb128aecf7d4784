// Package cmd provides the CLI commands for suggestd.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zakupnik/suggestd/pkg/version"
)

// NewRootCmd creates the root command for the suggestd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestd",
		Short: "Product suggestion and ranking service",
		Long: `suggestd serves product suggestions for the shopping-list app:
a fuzzy full-text index over the product catalog with a relational
trigram fallback, fused with each profile's purchase history, plus a
quantity/unit estimator.

Run 'suggestd serve' to start the HTTP service.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("suggestd version {{.Version}}\n")

	cmd.PersistentFlags().String("config", ".", "Directory containing suggestd.yaml")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
