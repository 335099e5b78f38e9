package cli

import (
	"fmt"
	"herdcore/internal/core"
	"herdcore/pkg/domain"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// parseDate parses a required YYYY-MM-DD flag.
func parseDate(flag, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("--%s is required", flag))
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, fmt.Sprintf("--%s must be YYYY-MM-DD", flag), err)
	}
	return t, nil
}

// parseOptionalDate returns the zero time for an empty flag.
func parseOptionalDate(flag, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return parseDate(flag, value)
}

func parseDecimal(flag, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, WrapExitError(ExitCommandError, fmt.Sprintf("--%s must be a decimal number", flag), err)
	}
	return d, nil
}

// parseOffspring reads one --offspring value of comma separated key=value
// pairs: id, tag, gender, weight, condition, colostrum.
func parseOffspring(value string) (core.OffspringInput, error) {
	var in core.OffspringInput
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return in, NewExitError(ExitCommandError, fmt.Sprintf("--offspring %q: expected key=value", part))
		}
		val = strings.TrimSpace(val)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "id":
			in.ID = val
		case "tag":
			in.Tag = val
		case "gender", "sex":
			in.Gender = domain.Sex(val)
		case "weight", "weight_kg":
			w, err := parseDecimal("offspring weight", val)
			if err != nil {
				return in, err
			}
			in.BirthWeightKg = w
		case "condition":
			in.BirthCondition = domain.BirthCondition(val)
		case "colostrum":
			in.ColostrumIntake = domain.ColostrumIntake(val)
		default:
			return in, NewExitError(ExitCommandError, fmt.Sprintf("--offspring: unknown key %q", key))
		}
	}
	return in, nil
}

func requireFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		_ = cmd.MarkFlagRequired(name)
	}
}
