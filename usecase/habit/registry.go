package habit

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/repository"
)

// AuthenticatorFactory binds an Authenticator to one session.
type AuthenticatorFactory func(sessionID string) repository.Authenticator

// Registry keeps one watched Store per signed-in session of the HTTP API.
type Registry struct {
	docs    repository.DocumentStore
	authFor AuthenticatorFactory
	opts    []Option
	logger  *zap.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry(docs repository.DocumentStore, authFor AuthenticatorFactory, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		docs:    docs,
		authFor: authFor,
		opts:    opts,
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// For returns the store of a session, creating and watching it on first use. The store is
// watched outside the registry lock; when two requests race, the first one registered wins
// and the other store is closed.
func (r *Registry) For(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if store, ok := r.lookup(sessionID); ok {
		return store, nil
	}

	store := New(r.docs, r.authFor(sessionID), r.logger.With(zap.String("session_id", sessionID)), r.opts...)
	if err := store.Watch(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.stores[sessionID]; ok {
		r.mu.Unlock()
		store.Close()
		return existing, nil
	}
	r.stores[sessionID] = store
	r.mu.Unlock()
	return store, nil
}

func (r *Registry) lookup(sessionID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[sessionID]
	return store, ok
}

// SignOut signs the session out and forgets its store.
func (r *Registry) SignOut(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	store, ok := r.stores[sessionID]
	delete(r.stores, sessionID)
	r.mu.Unlock()

	if !ok {
		return r.authFor(sessionID).SignOut(ctx)
	}
	return store.SignOut(ctx)
}

// ResyncAll reconciles every open store. Stores whose session has ended are dropped.
func (r *Registry) ResyncAll(ctx context.Context) error {
	r.mu.Lock()
	snapshot := make(map[string]*Store, len(r.stores))
	for id, store := range r.stores {
		snapshot[id] = store
	}
	r.mu.Unlock()

	var result error
	event := domain.ChangeEvent{Action: domain.ActionUpdated, Collection: domain.CollectionHabits}
	for id, store := range snapshot {
		err := store.Reconcile(ctx, event)
		if err == nil {
			continue
		}
		if domain.HasCode(err, domain.ErrCodeUnauthorized) {
			r.logger.Info("dropping store of ended session", zap.String("session_id", id))
			r.forget(id, store)
			continue
		}
		result = errors.Join(result, err)
	}
	return result
}

// Len is the number of open stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close releases every subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, store := range r.stores {
		store.Close()
		delete(r.stores, id)
	}
}

func (r *Registry) forget(id string, store *Store) {
	r.mu.Lock()
	if current, ok := r.stores[id]; ok && current == store {
		delete(r.stores, id)
	}
	r.mu.Unlock()
	store.Close()
}
