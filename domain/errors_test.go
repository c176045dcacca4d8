package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", FetchError(ErrUnauthenticated))

	if !errors.Is(wrapped, ErrUnauthenticated) {
		t.Error("errors.Is does not find the wrapped sentinel")
	}
	if !HasCode(wrapped, ErrCodeFetch) || !HasCode(wrapped, ErrCodeUnauthorized) {
		t.Error("HasCode misses a code in the chain")
	}
	if HasCode(wrapped, ErrCodeRemote) {
		t.Error("HasCode reports a code not in the chain")
	}
	if errors.Is(ErrHabitNotFound, ErrUserNotFound) {
		t.Error("sentinels with the same code but different messages match")
	}
	if !IsDomainError(wrapped, ErrCodeFetch) || IsDomainError(wrapped, ErrCodeUnauthorized) {
		t.Error("IsDomainError should only look at the outermost domain error")
	}
}

func TestErrorMessage(t *testing.T) {
	err := RemoteError("update streak", errors.New("timeout"))
	if got := err.Error(); got != "update streak: timeout" {
		t.Errorf("Error() = %q", got)
	}
	if got := ErrHabitNotFound.Error(); got != "habit not found" {
		t.Errorf("Error() = %q", got)
	}
}
