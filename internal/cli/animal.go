package cli

import (
	"herdcore/internal/core"
	"herdcore/pkg/domain"

	"github.com/spf13/cobra"
)

// NewAnimalCommand groups registry seeding commands.
func NewAnimalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "animal",
		Short: "Register and list dams and sires",
	}
	cmd.AddCommand(newAnimalRegisterCommand(rootOpts))
	cmd.AddCommand(newAnimalListCommand(rootOpts))
	return cmd
}

func newAnimalRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	var in core.AnimalInput
	var sex string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an animal for the current farmer",
		Example: `  herdcore --farmer farm-1 animal register --tag C-104 --species cattle --sex Female`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Sex = domain.Sex(sex)
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				animal, res, err := env.service.RegisterAnimal(env.ctx, in)
				return mutation(animal, res), err
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "explicit animal ID (generated when empty)")
	cmd.Flags().StringVar(&in.Tag, "tag", "", "ear tag, unique per farmer")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Species, "species", "", "species (cattle, goat, sheep, ...)")
	cmd.Flags().StringVar(&sex, "sex", "", "Female or Male")
	requireFlags(cmd, "tag", "sex")
	return cmd
}

func newAnimalListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List animals visible to the current farmer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				return env.service.ListAnimals(env.ctx)
			})
		},
	}
}
