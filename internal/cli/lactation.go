package cli

import (
	"github.com/spf13/cobra"
)

// NewLactationCommand groups lactation commands.
func NewLactationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lactation",
		Short: "Close lactations, record peaks, and list a dam's lactations",
	}
	cmd.AddCommand(newLactationCloseCommand(rootOpts))
	cmd.AddCommand(newLactationPeakCommand(rootOpts))
	cmd.AddCommand(newLactationListCommand(rootOpts))
	return cmd
}

func newLactationCloseCommand(rootOpts *RootOptions) *cobra.Command {
	var dryOff, totalMilk string
	cmd := &cobra.Command{
		Use:   "close <lactation-id>",
		Short: "Dry off an ongoing lactation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate("dry-off", dryOff)
			if err != nil {
				return err
			}
			milk, err := parseDecimal("total-milk", totalMilk)
			if err != nil {
				return err
			}
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				lactation, res, err := env.service.CloseLactation(env.ctx, args[0], date, milk)
				return mutation(lactation, res), err
			})
		},
	}
	cmd.Flags().StringVar(&dryOff, "dry-off", "", "dry-off date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&totalMilk, "total-milk", "0", "total milk in kg")
	requireFlags(cmd, "dry-off")
	return cmd
}

func newLactationPeakCommand(rootOpts *RootOptions) *cobra.Command {
	var peak string
	cmd := &cobra.Command{
		Use:   "peak <lactation-id>",
		Short: "Record the peak yield date of a lactation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate("date", peak)
			if err != nil {
				return err
			}
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				lactation, res, err := env.service.RecordLactationPeak(env.ctx, args[0], date)
				return mutation(lactation, res), err
			})
		},
	}
	cmd.Flags().StringVar(&peak, "date", "", "peak date (YYYY-MM-DD)")
	requireFlags(cmd, "date")
	return cmd
}

func newLactationListCommand(rootOpts *RootOptions) *cobra.Command {
	var damID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a dam's lactations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				return env.service.ListLactations(env.ctx, damID)
			})
		},
	}
	cmd.Flags().StringVar(&damID, "dam", "", "dam ID")
	requireFlags(cmd, "dam")
	return cmd
}
