package cli

import (
	"herdcore/internal/core"
	"herdcore/pkg/domain"

	"github.com/spf13/cobra"
)

// NewInseminationCommand groups insemination commands.
func NewInseminationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "insemination",
		Aliases: []string{"insem"},
		Short:   "Create, fail, delete, and inspect inseminations",
	}
	cmd.AddCommand(newInseminationCreateCommand(rootOpts))
	cmd.AddCommand(newInseminationFailCommand(rootOpts))
	cmd.AddCommand(newInseminationDeleteCommand(rootOpts))
	cmd.AddCommand(newInseminationShowCommand(rootOpts))
	cmd.AddCommand(newInseminationListCommand(rootOpts))
	return cmd
}

func newInseminationCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var in core.InseminationInput
	var date, method string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Inseminate a dam on an observed heat cycle",
		Example: `  herdcore insemination create --dam <dam> --heat-cycle <cycle> --method AI --straw <straw> --date 2025-01-01
  herdcore insemination create --dam <dam> --heat-cycle <cycle> --method Natural --sire <bull> --date 2025-01-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("date", date)
			if err != nil {
				return err
			}
			in.Date = d
			in.Method = domain.BreedingMethod(method)
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				insem, res, err := env.service.CreateInsemination(env.ctx, in)
				return mutation(insem, res), err
			})
		},
	}
	cmd.Flags().StringVar(&in.DamID, "dam", "", "dam ID")
	cmd.Flags().StringVar(&in.HeatCycleID, "heat-cycle", "", "heat cycle ID")
	cmd.Flags().StringVar(&method, "method", "", "Natural|AI")
	cmd.Flags().StringVar(&in.SireID, "sire", "", "sire ID (Natural)")
	cmd.Flags().StringVar(&in.SemenID, "straw", "", "semen straw ID (AI)")
	cmd.Flags().StringVar(&date, "date", "", "insemination date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "free text")
	requireFlags(cmd, "dam", "heat-cycle", "method", "date")
	return cmd
}

func newInseminationFailCommand(rootOpts *RootOptions) *cobra.Command {
	var date, note string
	cmd := &cobra.Command{
		Use:   "fail <insemination-id>",
		Short: "Close an insemination as failed and release its heat cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseOptionalDate("date", date)
			if err != nil {
				return err
			}
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				insem, res, err := env.service.MarkInseminationFailed(env.ctx, args[0], d, note)
				return mutation(insem, res), err
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "failure date (defaults to today)")
	cmd.Flags().StringVar(&note, "note", "", "reason appended to the notes")
	return cmd
}

func newInseminationDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <insemination-id>",
		Short: "Delete an insemination without a delivery, with its checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				res, err := env.service.DeleteInsemination(env.ctx, args[0])
				return mutation(Deleted{Entity: domain.EntityInsemination, ID: args[0]}, res), err
			})
		},
	}
}

func newInseminationShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <insemination-id>",
		Short: "Show one insemination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				return env.service.GetInsemination(env.ctx, args[0])
			})
		},
	}
}

func newInseminationListCommand(rootOpts *RootOptions) *cobra.Command {
	var damID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a dam's inseminations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				return env.service.ListInseminations(env.ctx, damID)
			})
		},
	}
	cmd.Flags().StringVar(&damID, "dam", "", "dam ID")
	requireFlags(cmd, "dam")
	return cmd
}
