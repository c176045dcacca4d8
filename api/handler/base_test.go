package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fastygo/habits/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   domain.ErrorCode
	}{
		{"not found", domain.ErrHabitNotFound, http.StatusNotFound, domain.ErrCodeNotFound},
		{"invalid", domain.NewError(domain.ErrCodeInvalid, "title is required"), http.StatusBadRequest, domain.ErrCodeInvalid},
		{"unauthenticated load", domain.FetchError(domain.ErrUnauthenticated), http.StatusUnauthorized, domain.ErrCodeUnauthorized},
		{"fetch", domain.FetchError(errors.New("timeout")), http.StatusBadGateway, domain.ErrCodeFetch},
		{"session store outage", domain.WrapError(domain.ErrCodeFetch, "resolve current user", errors.New("dial tcp: refused")), http.StatusBadGateway, domain.ErrCodeFetch},
		{"remote", domain.RemoteError("update streak", errors.New("503")), http.StatusBadGateway, domain.ErrCodeRemote},
		{"remote not found stays remote", domain.RemoteError("delete habit", domain.ErrDocumentNotFound), http.StatusBadGateway, domain.ErrCodeRemote},
		{"wrapped", fmt.Errorf("ctx: %w", domain.ErrUnauthorized), http.StatusUnauthorized, domain.ErrCodeUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, domain.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := mapError(tt.err)
			if status != tt.status || code != string(tt.code) {
				t.Errorf("mapError() = %d %s, want %d %s", status, code, tt.status, tt.code)
			}
		})
	}
}
