package cli

import (
	"herdcore/internal/core"
	"herdcore/pkg/domain"

	"github.com/spf13/cobra"
)

// NewCheckCommand groups pregnancy check commands.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Record, correct, and list pregnancy checks",
	}
	cmd.AddCommand(newCheckRecordCommand(rootOpts))
	cmd.AddCommand(newCheckUpdateCommand(rootOpts))
	cmd.AddCommand(newCheckDeleteCommand(rootOpts))
	cmd.AddCommand(newCheckListCommand(rootOpts))
	return cmd
}

type checkFlags struct {
	inseminationID string
	date           string
	method         string
	result         string
	fetusCount     int
	due            string
	notes          string
}

func (f *checkFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "check date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.method, "method", "", "Ultrasound|Palpation|BloodTest|Observation")
	cmd.Flags().StringVar(&f.result, "result", "", "Pregnant|NotPregnant|Reabsorbed")
	cmd.Flags().IntVar(&f.fetusCount, "fetus-count", 0, "number of fetuses seen")
	cmd.Flags().StringVar(&f.due, "due", "", "expected delivery date for Pregnant results (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free text")
}

func (f *checkFlags) input(cmd *cobra.Command) (core.PregnancyCheckInput, error) {
	date, err := parseDate("date", f.date)
	if err != nil {
		return core.PregnancyCheckInput{}, err
	}
	in := core.PregnancyCheckInput{
		InseminationID: f.inseminationID,
		CheckDate:      date,
		Method:         domain.CheckMethod(f.method),
		Result:         domain.CheckResult(f.result),
		Notes:          f.notes,
	}
	if cmd.Flags().Changed("fetus-count") {
		count := f.fetusCount
		in.FetusCount = &count
	}
	due, err := parseOptionalDate("due", f.due)
	if err != nil {
		return core.PregnancyCheckInput{}, err
	}
	if !due.IsZero() {
		in.ExpectedDeliveryDate = &due
	}
	return in, nil
}

func newCheckRecordCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &checkFlags{}
	cmd := &cobra.Command{
		Use:     "record",
		Short:   "Record a pregnancy check and recompute the insemination status",
		Example: `  herdcore check record --insemination <id> --date 2025-02-15 --method Ultrasound --result Pregnant --fetus-count 1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input(cmd)
			if err != nil {
				return err
			}
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				check, res, err := env.service.RecordPregnancyCheck(env.ctx, in)
				return mutation(check, res), err
			})
		},
	}
	cmd.Flags().StringVar(&flags.inseminationID, "insemination", "", "insemination ID")
	flags.bind(cmd)
	requireFlags(cmd, "insemination", "date", "method", "result")
	return cmd
}

func newCheckUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "update <check-id>",
		Short: "Correct a pregnancy check and recompute the insemination status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input(cmd)
			if err != nil {
				return err
			}
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				check, res, err := env.service.UpdatePregnancyCheck(env.ctx, args[0], in)
				return mutation(check, res), err
			})
		},
	}
	flags.bind(cmd)
	requireFlags(cmd, "date", "method", "result")
	return cmd
}

func newCheckDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <check-id>",
		Short: "Delete a pregnancy check and recompute the insemination status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				res, err := env.service.DeletePregnancyCheck(env.ctx, args[0])
				return mutation(Deleted{Entity: domain.EntityPregnancyCheck, ID: args[0]}, res), err
			})
		},
	}
}

func newCheckListCommand(rootOpts *RootOptions) *cobra.Command {
	var inseminationID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the checks of an insemination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				return env.service.ListPregnancyChecks(env.ctx, inseminationID)
			})
		},
	}
	cmd.Flags().StringVar(&inseminationID, "insemination", "", "insemination ID")
	requireFlags(cmd, "insemination")
	return cmd
}
