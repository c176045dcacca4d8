package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/repository"
	"github.com/fastygo/habits/usecase"
)

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *TokenIssuer
	clock    usecase.Clock
	logger   *zap.Logger
}

func New(users repository.UserRepository, sessions repository.SessionRepository, tokens *TokenIssuer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		clock:    usecase.SystemClock{},
		logger:   logger,
	}
}

// WithClock replaces the time source used for session expiry.
func (uc *UseCase) WithClock(clock usecase.Clock) *UseCase {
	if clock != nil {
		uc.clock = clock
	}
	return uc
}

// Register creates or updates a user record so it can sign in.
func (uc *UseCase) Register(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil || user.ID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if user.Status == "" {
		user.Status = "active"
	}
	if err := uc.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SignIn opens a session for an active user.
func (uc *UseCase) SignIn(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.ErrUnauthorized
	}

	now := uc.clock.Now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	uc.logger.Info("session opened", zap.String("user_id", user.ID), zap.String("session_id", session.ID))
	return session, nil
}

func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(uc.clock.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (uc *UseCase) RefreshSession(ctx context.Context, sessionID string, ttl time.Duration) (*domain.Session, error) {
	session, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := uc.sessions.Extend(ctx, sessionID, int(ttl.Seconds())); err != nil {
		return nil, err
	}
	session.ExpiresAt = uc.clock.Now().Add(ttl)
	return session, nil
}

func (uc *UseCase) RevokeSession(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}

// RevokeAll signs a user out of every session.
func (uc *UseCase) RevokeAll(ctx context.Context, userID string) (int, error) {
	n, err := uc.sessions.DeleteForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	uc.logger.Info("sessions revoked", zap.String("user_id", userID), zap.Int("count", n))
	return n, nil
}

// IssueToken signs a bearer token for the session.
func (uc *UseCase) IssueToken(session *domain.Session) (string, error) {
	if uc.tokens == nil {
		return "", errors.New("token issuer not configured")
	}
	return uc.tokens.Issue(session)
}

// ForSession returns the signed-in-user view of one session.
func (uc *UseCase) ForSession(sessionID string) repository.Authenticator {
	return &sessionAuthenticator{uc: uc, sessionID: sessionID}
}

type sessionAuthenticator struct {
	uc        *UseCase
	sessionID string
}

func (a *sessionAuthenticator) CurrentUser(ctx context.Context) (*domain.User, error) {
	if a.sessionID == "" {
		return nil, nil
	}
	session, err := a.uc.GetSession(ctx, a.sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	user, err := a.uc.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (a *sessionAuthenticator) SignOut(ctx context.Context) error {
	if a.sessionID == "" {
		return nil
	}
	return a.uc.RevokeSession(ctx, a.sessionID)
}
