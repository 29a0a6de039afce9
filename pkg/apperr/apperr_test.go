package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestTaxonomyPredicates(t *testing.T) {
	cases := []struct {
		err   error
		check func(error) bool
	}{
		{Validation("name", "must not be empty"), IsValidation},
		{NotFound("stage", "ghost"), IsNotFound},
		{Forbidden("no capability"), IsForbidden},
		{Conflict("stale stage"), IsConflict},
		{Dependency("order service", errors.New("dial tcp refused")), IsDependency},
	}

	for _, tc := range cases {
		if !tc.check(tc.err) {
			t.Fatalf("predicate failed for %v", tc.err)
		}
	}

	if IsConflict(Validation("x", "y")) {
		t.Fatalf("predicates must not cross-match")
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("transition failed: %w", Forbidden("no backward capability"))
	if !IsForbidden(wrapped) {
		t.Fatalf("expected forbidden through wrapping")
	}
}

func TestDependencyUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Dependency("job store", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected to unwrap to the cause")
	}
}

func TestValidationMessage(t *testing.T) {
	err := Validation("message", "must not be empty")
	if err.Error() != "message: must not be empty" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
