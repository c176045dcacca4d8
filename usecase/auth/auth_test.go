package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/internal/testutil"
	"github.com/fastygo/habits/usecase/auth"
)

func newUseCase(t *testing.T, users ...domain.User) (*auth.UseCase, *testutil.SessionRepository, *testutil.StubClock) {
	t.Helper()
	sessions := testutil.NewSessionRepository()
	clock := testutil.FixedClock()
	uc := auth.New(testutil.NewUserRepository(users...), sessions, auth.NewTokenIssuer("secret", "habits"), nil).WithClock(clock)
	return uc, sessions, clock
}

func TestUseCase_SignIn(t *testing.T) {
	t.Run("opens a session for an active user", func(t *testing.T) {
		t.Parallel()
		uc, sessions, clock := newUseCase(t, domain.User{ID: "u1", Status: "active"})

		session, err := uc.SignIn(context.Background(), "u1", time.Hour)
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		if session.UserID != "u1" || session.ID == "" {
			t.Errorf("SignIn() = %+v", session)
		}
		if !session.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
			t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, clock.Now().Add(time.Hour))
		}
		if sessions.Len() != 1 {
			t.Errorf("stored sessions = %d, want 1", sessions.Len())
		}
	})

	t.Run("unknown and inactive users are unauthorized", func(t *testing.T) {
		t.Parallel()
		uc, sessions, _ := newUseCase(t, domain.User{ID: "banned", Status: "disabled"})

		for _, id := range []string{"ghost", "banned"} {
			if _, err := uc.SignIn(context.Background(), id, time.Hour); !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("SignIn(%s) error = %v, want %v", id, err, domain.ErrUnauthorized)
			}
		}
		if sessions.Len() != 0 {
			t.Errorf("stored sessions = %d, want 0", sessions.Len())
		}
	})
}

func TestUseCase_Register(t *testing.T) {
	t.Parallel()
	uc, _, _ := newUseCase(t)

	if _, err := uc.Register(context.Background(), &domain.User{}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Errorf("Register(empty) error = %v, want %v", err, domain.ErrInvalidPayload)
	}
	user, err := uc.Register(context.Background(), &domain.User{ID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !user.IsActive() {
		t.Errorf("registered user status = %q, want active", user.Status)
	}
	if _, err := uc.SignIn(context.Background(), "u1", time.Minute); err != nil {
		t.Errorf("SignIn() after Register error = %v", err)
	}
}

func TestUseCase_GetSession(t *testing.T) {
	t.Parallel()
	uc, sessions, clock := newUseCase(t, domain.User{ID: "u1", Status: "active"})
	session, err := uc.SignIn(context.Background(), "u1", time.Hour)
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if _, err := uc.GetSession(context.Background(), session.ID); err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := uc.GetSession(context.Background(), session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("GetSession() of expired session error = %v, want %v", err, domain.ErrSessionNotFound)
	}
	if sessions.Len() != 0 {
		t.Error("expired session not removed")
	}
}

func TestUseCase_RevokeAll(t *testing.T) {
	t.Parallel()
	uc, sessions, _ := newUseCase(t, domain.User{ID: "u1", Status: "active"}, domain.User{ID: "u2", Status: "active"})
	for _, id := range []string{"u1", "u1", "u2"} {
		if _, err := uc.SignIn(context.Background(), id, time.Hour); err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
	}

	n, err := uc.RevokeAll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RevokeAll() error = %v", err)
	}
	if n != 2 || sessions.Len() != 1 {
		t.Errorf("revoked %d, left %d; want 2 and 1", n, sessions.Len())
	}
}

func TestSessionAuthenticator(t *testing.T) {
	t.Run("resolves the session's user until sign out", func(t *testing.T) {
		t.Parallel()
		uc, _, _ := newUseCase(t, domain.User{ID: "u1", Status: "active"})
		session, err := uc.SignIn(context.Background(), "u1", time.Hour)
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		authn := uc.ForSession(session.ID)

		user, err := authn.CurrentUser(context.Background())
		if err != nil || user == nil || user.ID != "u1" {
			t.Fatalf("CurrentUser() = %v, %v; want u1", user, err)
		}

		if err := authn.SignOut(context.Background()); err != nil {
			t.Fatalf("SignOut() error = %v", err)
		}
		user, err = authn.CurrentUser(context.Background())
		if err != nil || user != nil {
			t.Errorf("CurrentUser() after sign out = %v, %v; want nil, nil", user, err)
		}
	})

	t.Run("empty and expired sessions have no user", func(t *testing.T) {
		t.Parallel()
		uc, _, clock := newUseCase(t, domain.User{ID: "u1", Status: "active"})
		session, err := uc.SignIn(context.Background(), "u1", time.Minute)
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		clock.Advance(time.Hour)

		for _, id := range []string{"", session.ID} {
			user, err := uc.ForSession(id).CurrentUser(context.Background())
			if err != nil || user != nil {
				t.Errorf("CurrentUser(%q) = %v, %v; want nil, nil", id, user, err)
			}
		}
	})
}
