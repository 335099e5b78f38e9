package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCategories(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		message  string
	}{
		{Invalid("check_date", "must not be in the future"), ErrValidation, "invalid check_date: must not be in the future"},
		{ValidationError{Message: "empty"}, ErrValidation, "invalid input: empty"},
		{NotFoundError{Entity: EntityInsemination, ID: "i-1"}, ErrNotFound, "insemination i-1 not found"},
		{Conflict(EntityHeatCycle, "h-1", "already inseminated by %s", "i-1"), ErrConflict, "heat_cycle h-1 conflict: already inseminated by i-1"},
		{ConflictError{Entity: EntityAnimal, Reason: "tag taken"}, ErrConflict, "animal conflict: tag taken"},
		{ErrStaleState, ErrConflict, "conflict: herd state was changed by another writer, retry"},
	}
	for _, tc := range cases {
		if tc.err.Error() != tc.message {
			t.Fatalf("unexpected message %q, want %q", tc.err.Error(), tc.message)
		}
		wrapped := fmt.Errorf("op: %w", tc.err)
		if !errors.Is(wrapped, tc.sentinel) {
			t.Fatalf("%v should match %v", tc.err, tc.sentinel)
		}
		for _, other := range []error{ErrValidation, ErrNotFound, ErrConflict} {
			if other != tc.sentinel && errors.Is(tc.err, other) {
				t.Fatalf("%v must not match %v", tc.err, other)
			}
		}
	}
}

func TestErrorsAsRecoversFields(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFoundError{Entity: EntityDelivery, ID: "d-9"})
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.ID != "d-9" || nf.Entity != EntityDelivery {
		t.Fatalf("errors.As lost fields: %+v", nf)
	}
}
