package habit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/internal/testutil"
	"github.com/fastygo/habits/repository"
	"github.com/fastygo/habits/usecase/habit"
)

type sessions struct {
	mu   sync.Mutex
	byID map[string]*testutil.Authenticator
}

func newSessions() *sessions {
	return &sessions{byID: make(map[string]*testutil.Authenticator)}
}

func (s *sessions) add(sessionID, userID string) *testutil.Authenticator {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth := testutil.SignedInAs(userID)
	s.byID[sessionID] = auth
	return auth
}

func (s *sessions) authFor(sessionID string) repository.Authenticator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if auth, ok := s.byID[sessionID]; ok {
		return auth
	}
	return testutil.SignedOut()
}

func TestRegistry_For(t *testing.T) {
	t.Run("keeps one watched store per session", func(t *testing.T) {
		t.Parallel()
		docs := testutil.NewDocumentStore()
		seedHabit(docs, "a1", "alice", 0)
		seedHabit(docs, "b1", "bob", 0)
		s := newSessions()
		s.add("s-alice", "alice")
		s.add("s-bob", "bob")
		registry := habit.NewRegistry(docs, s.authFor, nil)
		defer registry.Close()

		alice, err := registry.For(context.Background(), "s-alice")
		if err != nil {
			t.Fatalf("For() error = %v", err)
		}
		again, err := registry.For(context.Background(), "s-alice")
		if err != nil {
			t.Fatalf("For() error = %v", err)
		}
		if alice != again {
			t.Error("For() built a second store for the same session")
		}
		bob, err := registry.For(context.Background(), "s-bob")
		if err != nil {
			t.Fatalf("For() error = %v", err)
		}

		if !equalIDs(alice.Habits(), "a1") || !equalIDs(bob.Habits(), "b1") {
			t.Errorf("alice = %v bob = %v", ids(alice.Habits()), ids(bob.Habits()))
		}
		if registry.Len() != 2 {
			t.Errorf("Len() = %d, want 2", registry.Len())
		}

		// A change by bob reconciles both stores but each still sees only its own habits.
		if _, err := bob.AddHabit(context.Background(), "Swim", "", "daily"); err != nil {
			t.Fatalf("AddHabit() error = %v", err)
		}
		if len(bob.Habits()) != 2 {
			t.Errorf("bob sees %v, want 2 habits", ids(bob.Habits()))
		}
		if !equalIDs(alice.Habits(), "a1") {
			t.Errorf("alice sees %v, want [a1]", ids(alice.Habits()))
		}
	})

	t.Run("rejects missing and ended sessions", func(t *testing.T) {
		t.Parallel()
		registry := habit.NewRegistry(testutil.NewDocumentStore(), newSessions().authFor, nil)

		if _, err := registry.For(context.Background(), ""); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("For(\"\") error = %v, want %v", err, domain.ErrUnauthenticated)
		}
		if _, err := registry.For(context.Background(), "gone"); !domain.HasCode(err, domain.ErrCodeUnauthorized) {
			t.Errorf("For(gone) error = %v, want unauthorized", err)
		}
		if registry.Len() != 0 {
			t.Errorf("Len() = %d, want 0", registry.Len())
		}
	})
}

// stalledAuth blocks its first CurrentUser call until release is closed.
type stalledAuth struct {
	*testutil.Authenticator
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (a *stalledAuth) CurrentUser(ctx context.Context) (*domain.User, error) {
	a.once.Do(func() {
		close(a.entered)
		<-a.release
	})
	return a.Authenticator.CurrentUser(ctx)
}

func TestRegistry_ForDoesNotSerialiseSessions(t *testing.T) {
	t.Parallel()
	docs := testutil.NewDocumentStore()
	seedHabit(docs, "a1", "alice", 0)
	seedHabit(docs, "b1", "bob", 0)
	slow := &stalledAuth{
		Authenticator: testutil.SignedInAs("alice"),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	registry := habit.NewRegistry(docs, func(sessionID string) repository.Authenticator {
		if sessionID == "s-alice" {
			return slow
		}
		return testutil.SignedInAs("bob")
	}, nil)
	defer registry.Close()

	aliceDone := make(chan error, 1)
	go func() {
		_, err := registry.For(context.Background(), "s-alice")
		aliceDone <- err
	}()
	<-slow.entered

	bobDone := make(chan error, 1)
	go func() {
		_, err := registry.For(context.Background(), "s-bob")
		bobDone <- err
	}()
	select {
	case err := <-bobDone:
		if err != nil {
			t.Fatalf("For(s-bob) error = %v", err)
		}
	case <-time.After(2 * time.Second):
		close(slow.release)
		t.Fatal("For(s-bob) waited on another session's store")
	}

	close(slow.release)
	if err := <-aliceDone; err != nil {
		t.Fatalf("For(s-alice) error = %v", err)
	}
	if registry.Len() != 2 {
		t.Errorf("Len() = %d, want 2", registry.Len())
	}
}

func TestRegistry_ForRacingSameSession(t *testing.T) {
	t.Parallel()
	docs := testutil.NewDocumentStore()
	seedHabit(docs, "a1", "alice", 0)
	s := newSessions()
	s.add("s1", "alice")
	registry := habit.NewRegistry(docs, s.authFor, nil)
	defer registry.Close()

	const callers = 8
	stores := make([]*habit.Store, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store, err := registry.For(context.Background(), "s1")
			if err != nil {
				t.Errorf("For() error = %v", err)
				return
			}
			stores[i] = store
		}(i)
	}
	wg.Wait()

	for i, store := range stores {
		if store != stores[0] {
			t.Errorf("caller %d got a different store", i)
		}
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1", registry.Len())
	}
	if n := docs.Subscribers(domain.DocumentsChannel(domain.CollectionHabits)); n != 1 {
		t.Errorf("Subscribers() = %d, want 1", n)
	}
}

func TestRegistry_SignOut(t *testing.T) {
	t.Parallel()
	docs := testutil.NewDocumentStore()
	s := newSessions()
	auth := s.add("s1", "alice")
	registry := habit.NewRegistry(docs, s.authFor, nil)

	if _, err := registry.For(context.Background(), "s1"); err != nil {
		t.Fatalf("For() error = %v", err)
	}
	if err := registry.SignOut(context.Background(), "s1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if registry.Len() != 0 {
		t.Errorf("Len() = %d, want 0", registry.Len())
	}
	if auth.SignOuts() != 1 {
		t.Errorf("SignOuts() = %d, want 1", auth.SignOuts())
	}
	if n := docs.Subscribers(domain.DocumentsChannel(domain.CollectionHabits)); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}
}

func TestRegistry_ResyncAll(t *testing.T) {
	t.Parallel()
	docs := testutil.NewDocumentStore()
	seedHabit(docs, "a1", "alice", 0)
	s := newSessions()
	alicesAuth := s.add("s-alice", "alice")
	bob := s.add("s-bob", "bob")
	registry := habit.NewRegistry(docs, s.authFor, nil)
	defer registry.Close()

	alice, err := registry.For(context.Background(), "s-alice")
	if err != nil {
		t.Fatalf("For() error = %v", err)
	}
	if _, err := registry.For(context.Background(), "s-bob"); err != nil {
		t.Fatalf("For() error = %v", err)
	}

	seedHabit(docs, "a2", "alice", 0)
	bob.SetUser(nil)

	if err := registry.ResyncAll(context.Background()); err != nil {
		t.Fatalf("ResyncAll() error = %v", err)
	}
	if !equalIDs(alice.Habits(), "a1", "a2") {
		t.Errorf("alice sees %v, want [a1 a2]", ids(alice.Habits()))
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after bob's session ended", registry.Len())
	}

	docs.FailOn(testutil.OpList, "", errors.New("offline"))
	if err := registry.ResyncAll(context.Background()); !domain.HasCode(err, domain.ErrCodeFetch) {
		t.Errorf("ResyncAll() error = %v, want fetch error", err)
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after a failed resync", registry.Len())
	}
	docs.FailOn(testutil.OpList, "", nil)

	alicesAuth.FailWith(errors.New("session store unreachable"))
	err = registry.ResyncAll(context.Background())
	if !domain.HasCode(err, domain.ErrCodeFetch) || domain.HasCode(err, domain.ErrCodeUnauthorized) {
		t.Errorf("ResyncAll() error = %v, want fetch error without unauthorized", err)
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want alice's store kept through a session store outage", registry.Len())
	}
}
