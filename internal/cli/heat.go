package cli

import (
	"herdcore/internal/core"
	"herdcore/pkg/domain"

	"github.com/spf13/cobra"
)

// NewHeatCommand groups heat cycle commands.
func NewHeatCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heat",
		Short: "Observe, confirm, release, and list heat cycles",
	}
	cmd.AddCommand(newHeatObserveCommand(rootOpts))
	cmd.AddCommand(newHeatConfirmCommand(rootOpts))
	cmd.AddCommand(newHeatReleaseCommand(rootOpts))
	cmd.AddCommand(newHeatDeleteCommand(rootOpts))
	cmd.AddCommand(newHeatListCommand(rootOpts))
	cmd.AddCommand(newHeatNextCommand(rootOpts))
	return cmd
}

func newHeatObserveCommand(rootOpts *RootOptions) *cobra.Command {
	var in core.HeatObservationInput
	var date, intensity string
	cmd := &cobra.Command{
		Use:     "observe",
		Short:   "Record an observed heat",
		Example: `  herdcore heat observe --dam <dam-id> --date 2025-01-01 --intensity Strong`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			observed, err := parseDate("date", date)
			if err != nil {
				return err
			}
			in.ObservedDate = observed
			in.Intensity = domain.HeatIntensity(intensity)
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				cycle, res, err := env.service.RecordHeatObservation(env.ctx, in)
				return mutation(cycle, res), err
			})
		},
	}
	cmd.Flags().StringVar(&in.DamID, "dam", "", "dam ID")
	cmd.Flags().StringVar(&date, "date", "", "observed date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&intensity, "intensity", "", "Weak|Moderate|Strong|StandingHeat")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "free text")
	requireFlags(cmd, "dam", "date", "intensity")
	return cmd
}

func newHeatConfirmCommand(rootOpts *RootOptions) *cobra.Command {
	var date, intensity string
	cmd := &cobra.Command{
		Use:   "confirm <heat-cycle-id>",
		Short: "Confirm a scheduled heat was observed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			observed, err := parseDate("date", date)
			if err != nil {
				return err
			}
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				cycle, res, err := env.service.ConfirmScheduledHeat(env.ctx, args[0], observed, domain.HeatIntensity(intensity))
				return mutation(cycle, res), err
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "observed date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&intensity, "intensity", "", "Weak|Moderate|Strong|StandingHeat")
	requireFlags(cmd, "date", "intensity")
	return cmd
}

func newHeatReleaseCommand(rootOpts *RootOptions) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "release <heat-cycle-id>",
		Short: "Release a heat cycle whose insemination no longer holds it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseOptionalDate("as-of", asOf)
			if err != nil {
				return err
			}
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				cycle, res, err := env.service.ReleaseHeatCycle(env.ctx, args[0], at)
				return mutation(cycle, res), err
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "release date (defaults to today)")
	return cmd
}

func newHeatDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <heat-cycle-id>",
		Short: "Delete a heat cycle no insemination references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				res, err := env.service.DeleteHeatCycle(env.ctx, args[0])
				return mutation(Deleted{Entity: domain.EntityHeatCycle, ID: args[0]}, res), err
			})
		},
	}
}

func newHeatListCommand(rootOpts *RootOptions) *cobra.Command {
	var damID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a dam's heat cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				return env.service.ListHeatCycles(env.ctx, damID)
			})
		},
	}
	cmd.Flags().StringVar(&damID, "dam", "", "dam ID")
	requireFlags(cmd, "dam")
	return cmd
}

func newHeatNextCommand(rootOpts *RootOptions) *cobra.Command {
	var damID string
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show a dam's next expected heat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				date, ok, err := env.service.NextExpectedHeat(env.ctx, damID)
				return NextHeat{DamID: damID, Date: date, Known: ok}, err
			})
		},
	}
	cmd.Flags().StringVar(&damID, "dam", "", "dam ID")
	requireFlags(cmd, "dam")
	return cmd
}
