// internal/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	plain := NewValidationError("bad input", nil)
	if plain.Error() != "bad input" {
		t.Fatalf("unexpected message: %q", plain.Error())
	}

	cause := fmt.Errorf("disk full")
	wrapped := NewProcessingError("save failed", cause)
	if wrapped.Error() != "save failed: disk full" {
		t.Fatalf("unexpected message: %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("wrapped cause not reachable via errors.Is")
	}
}

func TestTypePredicates(t *testing.T) {
	cases := []struct {
		err       error
		predicate func(error) bool
		expected  bool
	}{
		{NewValidationError("x", nil), IsValidationError, true},
		{NewNotFoundError("x", nil), IsNotFoundError, true},
		{NewConflictError("x", nil), IsConflictError, true},
		{NewUnavailableError("x", nil), IsUnavailableError, true},
		{NewNotFoundError("x", nil), IsValidationError, false},
		{errors.New("plain"), IsNotFoundError, false},
		{nil, IsValidationError, false},
	}

	for i, tc := range cases {
		if got := tc.predicate(tc.err); got != tc.expected {
			t.Errorf("case %d: got %v, want %v", i, got, tc.expected)
		}
	}
}
