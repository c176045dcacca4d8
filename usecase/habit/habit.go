package habit

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/repository"
	"github.com/fastygo/habits/usecase"
)

// Snapshotter persists the last list a store loaded successfully.
type Snapshotter interface {
	SaveHabits(ownerID string, habits []domain.Habit) error
}

// Option customises a Store.
type Option func(*Store)

// WithClock sets the time source for completion timestamps.
func WithClock(clock usecase.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSnapshotter saves every successfully loaded list.
func WithSnapshotter(snap Snapshotter) Option {
	return func(s *Store) { s.snapshots = snap }
}

// WithListener is called with the new list after every successful load.
func WithListener(fn func(ownerID string, habits []domain.Habit)) Option {
	return func(s *Store) { s.listener = fn }
}

// Store holds the signed-in user's habits and applies completion and deletion against the
// document store. Writes never touch the local list: it only changes when a fetch succeeds.
type Store struct {
	docs      repository.DocumentStore
	auth      repository.Authenticator
	clock     usecase.Clock
	snapshots Snapshotter
	listener  func(ownerID string, habits []domain.Habit)
	logger    *zap.Logger

	// loads numbers fetches in the order they start; committed is the number of the fetch
	// whose result is visible. A fetch older than committed never replaces the list.
	loads     atomic.Uint64
	mu        sync.RWMutex
	committed uint64
	ownerID   string
	habits    []domain.Habit

	watchMu     sync.Mutex
	unsubscribe func()
}

func New(docs repository.DocumentStore, auth repository.Authenticator, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		docs:   docs,
		auth:   auth,
		clock:  usecase.SystemClock{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Habits returns a copy of the visible list.
func (s *Store) Habits() []domain.Habit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHabits(s.habits)
}

// Owner is the user whose habits are visible, empty before the first load.
func (s *Store) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerID
}

// LoadHabits fetches every habit of ownerID and replaces the visible list. On any failure
// the visible list is left as it was. An empty ownerID means the signed-in user. When a fetch
// that started later has already landed, the older result is dropped and the visible list
// is returned instead.
func (s *Store) LoadHabits(ctx context.Context, ownerID string) ([]domain.Habit, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeFetch, "fetch habits", err)
	}
	if ownerID == "" {
		ownerID = user.ID
	}
	if ownerID != user.ID {
		return nil, domain.WrapError(domain.ErrCodeFetch, "fetch habits",
			domain.NewError(domain.ErrCodeUnauthorized, "owner is not the signed-in user"))
	}

	seq := s.loads.Add(1)
	docs, err := s.docs.List(ctx, domain.CollectionHabits, repository.WhereEqual("user_id", ownerID))
	if err != nil {
		s.logger.Error("fetch habits failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, domain.FetchError(err)
	}

	habits := make([]domain.Habit, 0, len(docs))
	for _, doc := range docs {
		h, err := domain.HabitFromDocument(doc)
		if err != nil {
			s.logger.Error("undecodable habit document", zap.String("document_id", doc.ID), zap.Error(err))
			return nil, domain.FetchError(err)
		}
		if h.OwnerID != ownerID {
			s.logger.Warn("dropping habit of another owner", zap.String("document_id", doc.ID))
			continue
		}
		habits = append(habits, h)
	}

	s.mu.Lock()
	if visible := s.committed; seq < visible {
		current := cloneHabits(s.habits)
		s.mu.Unlock()
		s.logger.Debug("dropping superseded habit fetch", zap.Uint64("fetch", seq), zap.Uint64("visible", visible))
		return current, nil
	}
	s.committed = seq
	s.ownerID = ownerID
	s.habits = habits
	s.mu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.SaveHabits(ownerID, habits); err != nil {
			s.logger.Warn("habit snapshot not saved", zap.String("owner_id", ownerID), zap.Error(err))
		}
	}
	if s.listener != nil {
		s.listener(ownerID, cloneHabits(habits))
	}
	return cloneHabits(habits), nil
}

// CompleteHabit records a completion and then bumps the habit's streak. The two writes are
// sequential: if the streak update fails the completion record stays behind without a
// matching streak increment, and nothing retries it. After both writes the list is fetched
// again so the next completion starts from the stored streak.
func (s *Store) CompleteHabit(ctx context.Context, habitID string) error {
	user, err := s.currentUser(ctx)
	if err != nil {
		return err
	}
	habit, ok := s.lookup(user.ID, habitID)
	if !ok {
		return domain.ErrHabitNotFound
	}

	now := s.clock.Now().UTC()
	completion := domain.Completion{
		HabitID:     habit.ID,
		OwnerID:     user.ID,
		CompletedAt: now,
	}
	if _, err := s.docs.Create(ctx, domain.CollectionCompletions, "", completion.Fields()); err != nil {
		s.logger.Error("record completion failed", zap.String("habit_id", habitID), zap.Error(err))
		return domain.RemoteError("record completion", err)
	}

	if _, err := s.docs.Update(ctx, domain.CollectionHabits, habit.ID, habit.CompletionFields(now)); err != nil {
		s.logger.Warn("completion recorded but streak not updated",
			zap.String("habit_id", habitID),
			zap.Int("streak_count", habit.StreakCount),
			zap.Time("completed_at", now),
			zap.Error(err))
		return domain.RemoteError("update streak", err)
	}

	s.logger.Debug("habit completed", zap.String("habit_id", habitID), zap.Int("streak_count", habit.StreakCount+1))

	if _, err := s.LoadHabits(ctx, user.ID); err != nil {
		s.logger.Warn("habit list not refreshed after completion", zap.String("habit_id", habitID), zap.Error(err))
	}
	return nil
}

// DeleteHabit removes a habit. Its completions are history and stay in place.
func (s *Store) DeleteHabit(ctx context.Context, habitID string) error {
	user, err := s.currentUser(ctx)
	if err != nil {
		return err
	}
	habit, ok := s.lookup(user.ID, habitID)
	if !ok {
		return domain.ErrHabitNotFound
	}

	if err := s.docs.Delete(ctx, domain.CollectionHabits, habit.ID); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return domain.ErrHabitNotFound
		}
		s.logger.Error("delete habit failed", zap.String("habit_id", habitID), zap.Error(err))
		return domain.RemoteError("delete habit", err)
	}
	return nil
}

// Reconcile refetches the full list whatever the event names.
func (s *Store) Reconcile(ctx context.Context, event domain.ChangeEvent) error {
	s.logger.Debug("reconciling habits",
		zap.String("action", string(event.Action)),
		zap.String("collection", event.Collection),
		zap.String("document_id", event.DocumentID))
	_, err := s.LoadHabits(ctx, s.Owner())
	return err
}

// Watch subscribes to habit changes and performs the initial load. The subscription is
// released if the initial load fails. Calling Watch again replaces the previous subscription.
func (s *Store) Watch(ctx context.Context) error {
	user, err := s.currentUser(ctx)
	if err != nil {
		return err
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopLocked()

	unsubscribe, err := s.docs.Subscribe(ctx, domain.DocumentsChannel(domain.CollectionHabits), func(event domain.ChangeEvent) {
		if err := s.Reconcile(context.Background(), event); err != nil {
			s.logger.Warn("reconcile failed", zap.String("action", string(event.Action)), zap.Error(err))
		}
	})
	if err != nil {
		return domain.WrapError(domain.ErrCodeFetch, "subscribe to habits", err)
	}

	if _, err := s.LoadHabits(ctx, user.ID); err != nil {
		unsubscribe()
		return err
	}
	s.unsubscribe = unsubscribe
	return nil
}

// Close releases the change subscription, if any.
func (s *Store) Close() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopLocked()
}

// SignOut closes the store, clears the visible list and signs the user out.
func (s *Store) SignOut(ctx context.Context) error {
	s.Close()
	s.mu.Lock()
	s.committed = s.loads.Add(1)
	s.ownerID = ""
	s.habits = nil
	s.mu.Unlock()
	return s.auth.SignOut(ctx)
}

// AddHabit creates a habit for the signed-in user with an empty streak.
func (s *Store) AddHabit(ctx context.Context, title, description, frequency string) (*domain.Habit, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "title is required")
	}
	freq, err := domain.ParseFrequency(frequency)
	if err != nil {
		return nil, err
	}

	doc, err := s.docs.Create(ctx, domain.CollectionHabits, "", domain.NewHabitFields(user.ID, title, strings.TrimSpace(description), freq))
	if err != nil {
		return nil, domain.RemoteError("create habit", err)
	}
	habit, err := domain.HabitFromDocument(*doc)
	if err != nil {
		return nil, domain.RemoteError("create habit", err)
	}
	return &habit, nil
}

// Completions lists the completion facts of a habit, oldest first. The habit need not
// exist anymore.
func (s *Store) Completions(ctx context.Context, habitID string) ([]domain.Completion, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	filter := repository.DocumentFilter{Equal: map[string]string{
		"habit_id": habitID,
		"user_id":  user.ID,
	}}
	docs, err := s.docs.List(ctx, domain.CollectionCompletions, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeFetch, "fetch completions", err)
	}

	completions := make([]domain.Completion, 0, len(docs))
	for _, doc := range docs {
		c, err := domain.CompletionFromDocument(doc)
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeFetch, "fetch completions", err)
		}
		if c.OwnerID != user.ID || c.HabitID != habitID {
			continue
		}
		completions = append(completions, c)
	}
	sort.SliceStable(completions, func(i, j int) bool {
		return completions[i].CompletedAt.Before(completions[j].CompletedAt)
	})
	return completions, nil
}

func (s *Store) currentUser(ctx context.Context) (*domain.User, error) {
	if s.auth == nil {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeFetch, "resolve current user", err)
	}
	if user == nil || user.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}

func (s *Store) lookup(ownerID, habitID string) (domain.Habit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ownerID != ownerID {
		return domain.Habit{}, false
	}
	for _, h := range s.habits {
		if h.ID == habitID {
			return h, true
		}
	}
	return domain.Habit{}, false
}

func (s *Store) stopLocked() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func cloneHabits(in []domain.Habit) []domain.Habit {
	out := make([]domain.Habit, len(in))
	copy(out, in)
	return out
}
