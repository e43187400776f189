package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategoryOfWrappedError(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("load session: %w", Wrap(PersistenceUnavailable, cause))

	if got := CategoryOf(err); got != PersistenceUnavailable {
		t.Fatalf("CategoryOf = %q, want %q", got, PersistenceUnavailable)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if !Is(err, PersistenceUnavailable) {
		t.Fatal("Is(PersistenceUnavailable) = false, want true")
	}
}

func TestCategoryOfFallbacks(t *testing.T) {
	t.Parallel()

	if got := CategoryOf(nil); got != "" {
		t.Fatalf("CategoryOf(nil) = %q, want empty", got)
	}
	if got := CategoryOf(context.DeadlineExceeded); got != CapabilityUnavailable {
		t.Fatalf("CategoryOf(deadline) = %q, want %q", got, CapabilityUnavailable)
	}
	if got := CategoryOf(errors.New("plain")); got != Internal {
		t.Fatalf("CategoryOf(plain) = %q, want %q", got, Internal)
	}
}

func TestErrorText(t *testing.T) {
	t.Parallel()

	if got := New(InsufficientData, "missing pax").Error(); got != "insufficient_data: missing pax" {
		t.Fatalf("Error() = %q", got)
	}
	if got := Wrapf(CapabilityUnavailable, errors.New("timeout"), "infer %s", "slots").Error(); got != "capability_unavailable: infer slots: timeout" {
		t.Fatalf("Error() = %q", got)
	}
	if Wrap(Internal, nil) != nil {
		t.Fatal("Wrap(nil) should stay nil")
	}
}
