package cli

import (
	"herdcore/internal/config"

	"github.com/spf13/cobra"
)

// NewConfigCommand prints the effective configuration.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.Config)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			if rootOpts.Farmer != "" {
				cfg.Farmer = rootOpts.Farmer
			}
			if err := cfg.Write(cmd.OutOrStdout()); err != nil {
				return WrapExitError(ExitCommandError, "failed to write configuration", err)
			}
			return nil
		},
	})
	return cmd
}
