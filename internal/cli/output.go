package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"herdcore/internal/core"
	"herdcore/pkg/domain"
	"io"
	"strings"
	"time"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Domain error (validation, not found, conflict)
	ExitCommandError = 2 // Command error (bad flags, unreadable config, storage unavailable)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Domain errors map to
// ExitFailure; anything else is a command error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if isDomainError(err) {
		return ExitFailure
	}
	return ExitCommandError
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict)
}

// errorCode names the category of a domain error for JSON output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "command"
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Mutation is the payload of a mutating command: the primary record and the
// cascade that was committed with it.
type Mutation struct {
	Record     any                `json:"record,omitempty"`
	Changes    []domain.Change    `json:"changes"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	return writeText(f.Writer, data)
}

// Error outputs a failed result in the configured format.
func (f *OutputFormatter) Error(err error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: errorCode(err), Message: err.Error()},
		})
	}
	_, werr := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", errorCode(err), err.Error())
	return werr
}

func writeText(w io.Writer, data any) error {
	var b strings.Builder
	switch v := data.(type) {
	case Mutation:
		if v.Record != nil {
			b.WriteString(describe(v.Record))
			b.WriteString("\n")
		}
		for _, c := range v.Changes {
			fmt.Fprintf(&b, "  %-6s %-15s %s\n", c.Action, c.Entity, c.EntityID)
		}
		for _, viol := range v.Violations {
			fmt.Fprintf(&b, "  %s: %s (%s)\n", viol.Severity, viol.Message, viol.Rule)
		}
	default:
		b.WriteString(describe(data))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func day(t time.Time) string { return t.Format(time.DateOnly) }

func optionalDay(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return day(*t)
}

// describe renders one record, or a list of records, as text lines.
func describe(v any) string { //nolint:cyclop
	switch r := v.(type) {
	case core.Animal:
		return fmt.Sprintf("animal %s tag=%s species=%s sex=%s", r.ID, r.Tag, r.Species, r.Sex)
	case core.SemenStraw:
		return fmt.Sprintf("straw %s code=%s breed=%s used=%t", r.ID, r.Code, r.SireBreed, r.Used)
	case core.HeatCycle:
		return fmt.Sprintf("heat_cycle %s dam=%s source=%s observed=%s next=%s inseminated=%t", r.ID, r.DamID, r.Source, optionalDay(r.ObservedDate), day(r.NextExpectedDate), r.Inseminated)
	case core.Insemination:
		return fmt.Sprintf("insemination %s dam=%s method=%s date=%s status=%s expected=%s", r.ID, r.DamID, r.Method, day(r.InseminationDate), r.Status, optionalDay(r.ExpectedDeliveryDate))
	case core.PregnancyCheck:
		return fmt.Sprintf("pregnancy_check %s insemination=%s date=%s result=%s", r.ID, r.InseminationID, day(r.CheckDate), r.Result)
	case core.DeliveryRecord:
		lines := []string{fmt.Sprintf("delivery %s insemination=%s date=%s type=%s born=%d live=%d still=%d", r.Delivery.ID, r.Delivery.InseminationID, day(r.Delivery.ActualDeliveryDate), r.Delivery.Type, r.Delivery.TotalBorn, r.Delivery.LiveBorn, r.Delivery.Stillborn)}
		for _, o := range r.Offspring {
			lines = append(lines, fmt.Sprintf("  offspring %s tag=%s gender=%s weight=%skg condition=%s", o.ID, o.Tag, o.Gender, o.BirthWeightKg.String(), o.BirthCondition))
		}
		return strings.Join(lines, "\n")
	case core.Lactation:
		return fmt.Sprintf("lactation %s dam=%s number=%d start=%s status=%s peak=%s dry_off=%s milk=%skg", r.ID, r.DamID, r.LactationNumber, day(r.StartDate), r.Status, optionalDay(r.PeakDate), optionalDay(r.DryOffDate), r.TotalMilkKg.String())
	case NextHeat:
		if !r.Known {
			return fmt.Sprintf("dam %s has no expected heat", r.DamID)
		}
		return fmt.Sprintf("dam %s next heat %s", r.DamID, day(r.Date))
	case Deleted:
		return fmt.Sprintf("deleted %s %s", r.Entity, r.ID)
	case []core.Animal:
		return describeAll(r)
	case []core.SemenStraw:
		return describeAll(r)
	case []core.HeatCycle:
		return describeAll(r)
	case []core.Insemination:
		return describeAll(r)
	case []core.PregnancyCheck:
		return describeAll(r)
	case []core.Lactation:
		return describeAll(r)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

func describeAll[T any](items []T) string {
	if len(items) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, describe(item))
	}
	return strings.Join(lines, "\n")
}

// Deleted is the record printed for delete commands.
type Deleted struct {
	Entity domain.EntityType `json:"entity"`
	ID     string            `json:"id"`
}

// NextHeat is the record printed by `heat next`.
type NextHeat struct {
	DamID string    `json:"dam_id"`
	Date  time.Time `json:"date,omitempty"`
	Known bool      `json:"known"`
}
