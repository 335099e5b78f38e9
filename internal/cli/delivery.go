package cli

import (
	"herdcore/internal/core"
	"herdcore/pkg/domain"

	"github.com/spf13/cobra"
)

// NewDeliveryCommand groups delivery commands.
func NewDeliveryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delivery",
		Short: "Record, correct, delete, and show deliveries",
	}
	cmd.AddCommand(newDeliveryRecordCommand(rootOpts))
	cmd.AddCommand(newDeliveryUpdateCommand(rootOpts))
	cmd.AddCommand(newDeliveryDeleteCommand(rootOpts))
	cmd.AddCommand(newDeliveryShowCommand(rootOpts))
	return cmd
}

type deliveryFlags struct {
	inseminationID string
	date           string
	kind           string
	ease           int
	totalBorn      int
	offspring      []string
	damCondition   string
	notes          string
}

func (f *deliveryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "actual delivery date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.kind, "type", "", "Normal|Assisted|Caesarean|Abortion")
	cmd.Flags().IntVar(&f.ease, "ease", 0, "calving ease score 1..5")
	cmd.Flags().IntVar(&f.totalBorn, "total-born", 0, "total born (defaults to the number of offspring)")
	cmd.Flags().StringArrayVar(&f.offspring, "offspring", nil, "offspring as key=value pairs: id,tag,gender,weight,condition,colostrum (repeatable)")
	cmd.Flags().StringVar(&f.damCondition, "dam-condition", "", "dam condition after delivery")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free text")
}

func (f *deliveryFlags) input() (core.DeliveryInput, error) {
	date, err := parseDate("date", f.date)
	if err != nil {
		return core.DeliveryInput{}, err
	}
	in := core.DeliveryInput{
		InseminationID:    f.inseminationID,
		ActualDate:        date,
		Type:              domain.DeliveryType(f.kind),
		EaseScore:         f.ease,
		TotalBorn:         f.totalBorn,
		DamConditionAfter: f.damCondition,
		Notes:             f.notes,
	}
	for _, raw := range f.offspring {
		o, err := parseOffspring(raw)
		if err != nil {
			return core.DeliveryInput{}, err
		}
		in.Offspring = append(in.Offspring, o)
	}
	return in, nil
}

func newDeliveryRecordCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &deliveryFlags{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a delivery, its offspring, the new lactation, and the next heat",
		Example: `  herdcore delivery record --insemination <id> --date 2025-10-10 --type Normal --ease 2 \
    --offspring tag=C-9,gender=Female,weight=32.5,condition=Vigorous,colostrum=Adequate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input()
			if err != nil {
				return err
			}
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				record, res, err := env.service.RecordDelivery(env.ctx, in)
				return mutation(record, res), err
			})
		},
	}
	cmd.Flags().StringVar(&flags.inseminationID, "insemination", "", "insemination ID")
	flags.bind(cmd)
	requireFlags(cmd, "insemination", "date", "type", "ease", "offspring")
	return cmd
}

func newDeliveryUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &deliveryFlags{}
	cmd := &cobra.Command{
		Use:   "update <delivery-id>",
		Short: "Correct a delivery; offspring without an id are added, omitted ones removed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input()
			if err != nil {
				return err
			}
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				record, res, err := env.service.UpdateDelivery(env.ctx, args[0], in)
				return mutation(record, res), err
			})
		},
	}
	flags.bind(cmd)
	requireFlags(cmd, "date", "type", "ease", "offspring")
	return cmd
}

func newDeliveryDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <delivery-id>",
		Short: "Delete a delivery and undo its cascade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				res, err := env.service.DeleteDelivery(env.ctx, args[0])
				return mutation(Deleted{Entity: domain.EntityDelivery, ID: args[0]}, res), err
			})
		},
	}
}

func newDeliveryShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <delivery-id>",
		Short: "Show a delivery with its offspring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, rootOpts, func(env *environment) (any, error) {
				return env.service.GetDelivery(env.ctx, args[0])
			})
		},
	}
}
