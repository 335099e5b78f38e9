package cli

import (
	"herdcore/internal/core"

	"github.com/spf13/cobra"
)

// NewStrawCommand groups semen inventory commands.
func NewStrawCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "straw",
		Short: "Manage semen straw inventory",
	}
	cmd.AddCommand(newStrawRegisterCommand(rootOpts))
	cmd.AddCommand(newStrawListCommand(rootOpts))
	return cmd
}

func newStrawRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	var in core.SemenStrawInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Add a straw to the farmer's inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				straw, res, err := env.service.RegisterSemenStraw(env.ctx, in)
				return mutation(straw, res), err
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "explicit straw ID (generated when empty)")
	cmd.Flags().StringVar(&in.Code, "code", "", "straw code, unique per farmer")
	cmd.Flags().StringVar(&in.SireBreed, "sire-breed", "", "breed of the donor sire")
	requireFlags(cmd, "code")
	return cmd
}

func newStrawListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List unused straws",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				return env.service.ListAvailableStraws(env.ctx, "")
			})
		},
	}
}
