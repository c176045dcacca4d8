package testutil

import (
	"context"
	"sync"

	"github.com/fastygo/habits/domain"
)

// Authenticator is a repository.Authenticator whose signed-in user is set by the test.
type Authenticator struct {
	mu         sync.Mutex
	user       *domain.User
	err        error
	signOutErr error
	signOuts   int
}

// SignedInAs returns an Authenticator with userID signed in.
func SignedInAs(userID string) *Authenticator {
	return &Authenticator{user: &domain.User{ID: userID, Status: "active"}}
}

// SignedOut returns an Authenticator with nobody signed in.
func SignedOut() *Authenticator {
	return &Authenticator{}
}

// SetUser switches the signed-in user. nil signs everybody out.
func (a *Authenticator) SetUser(user *domain.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = user
}

// FailWith makes CurrentUser return err.
func (a *Authenticator) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// FailSignOutWith makes SignOut return err.
func (a *Authenticator) FailSignOutWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signOutErr = err
}

// SignOuts counts SignOut calls.
func (a *Authenticator) SignOuts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signOuts
}

func (a *Authenticator) CurrentUser(context.Context) (*domain.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	if a.user == nil {
		return nil, nil
	}
	user := *a.user
	return &user, nil
}

func (a *Authenticator) SignOut(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signOuts++
	if a.signOutErr != nil {
		return a.signOutErr
	}
	a.user = nil
	return nil
}

// UserRepository is an in-memory repository.UserRepository.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func NewUserRepository(users ...domain.User) *UserRepository {
	repo := &UserRepository{users: make(map[string]domain.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (r *UserRepository) Upsert(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

// SessionRepository is an in-memory repository.SessionRepository. Expiry is left to the caller.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]domain.Session)}
}

func (r *SessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *SessionRepository) Save(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *SessionRepository) Extend(_ context.Context, id string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteForUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len is the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
