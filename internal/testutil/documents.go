package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/repository"
)

// Operation names accepted by DocumentStore.FailOn.
const (
	OpList      = "list"
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpSubscribe = "subscribe"
)

// Call records one DocumentStore request.
type Call struct {
	Op         string
	Collection string
	ID         string
	Fields     domain.Fields
}

// DocumentStore is an in-memory repository.DocumentStore. Writes announce change events to
// subscribers synchronously, after the store lock is released.
type DocumentStore struct {
	mu       sync.Mutex
	docs     map[string]map[string]domain.Document
	failures map[string]error
	calls    []Call
	subs     map[string]map[int]repository.ChangeHandler
	nextSub  int
	now      func() time.Time
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:     make(map[string]map[string]domain.Document),
		failures: make(map[string]error),
		subs:     make(map[string]map[int]repository.ChangeHandler),
		now:      time.Now,
	}
}

// FailOn makes every op on collection return err until cleared with a nil err.
// An empty collection matches all collections.
func (s *DocumentStore) FailOn(op, collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := op + "/" + collection
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

// Put stores a document as is, without announcing it.
func (s *DocumentStore) Put(collection, id string, fields domain.Fields) domain.Document {
	raw, err := json.Marshal(fields)
	if err != nil {
		panic(fmt.Sprintf("testutil: encode fields: %v", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	doc := domain.Document{ID: id, Collection: collection, Fields: raw, CreatedAt: now, UpdatedAt: now}
	s.collection(collection)[id] = doc
	return doc
}

// Get returns a stored document.
func (s *DocumentStore) Get(collection, id string) (domain.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[collection][id]
	return doc, ok
}

// Count is the number of documents in collection.
func (s *DocumentStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[collection])
}

// Calls returns every request made so far.
func (s *DocumentStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// WriteCalls counts create, update and delete requests, including failed ones.
func (s *DocumentStore) WriteCalls() int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == OpCreate || c.Op == OpUpdate || c.Op == OpDelete {
			n++
		}
	}
	return n
}

// Subscribers is the number of live subscriptions on channel.
func (s *DocumentStore) Subscribers(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[channel])
}

// Emit delivers event to the subscribers of its channel.
func (s *DocumentStore) Emit(event domain.ChangeEvent) {
	s.mu.Lock()
	handlers := make([]repository.ChangeHandler, 0, len(s.subs[event.Channel]))
	ids := make([]int, 0, len(s.subs[event.Channel]))
	for id := range s.subs[event.Channel] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, s.subs[event.Channel][id])
	}
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (s *DocumentStore) List(_ context.Context, collection string, filter repository.DocumentFilter) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpList, Collection: collection})
	if err := s.failure(OpList, collection); err != nil {
		return nil, err
	}

	var out []domain.Document
	for _, doc := range s.docs[collection] {
		if matches(doc, filter.Equal) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *DocumentStore) Create(_ context.Context, collection, id string, fields domain.Fields) (*domain.Document, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Op: OpCreate, Collection: collection, ID: id, Fields: fields})
	if err := s.failure(OpCreate, collection); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.docs[collection][id]; exists {
		s.mu.Unlock()
		return nil, domain.NewError(domain.ErrCodeConflict, "document already exists")
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	now := s.now()
	doc := domain.Document{ID: id, Collection: collection, Fields: raw, CreatedAt: now, UpdatedAt: now}
	s.collection(collection)[id] = doc
	s.mu.Unlock()

	s.announce(domain.ActionCreated, doc)
	return &doc, nil
}

func (s *DocumentStore) Update(_ context.Context, collection, id string, fields domain.Fields) (*domain.Document, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Op: OpUpdate, Collection: collection, ID: id, Fields: fields})
	if err := s.failure(OpUpdate, collection); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	doc, ok := s.docs[collection][id]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrDocumentNotFound
	}
	merged, err := domain.MergeFields(doc.Fields, fields)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	doc.Fields = merged
	doc.UpdatedAt = s.now()
	s.docs[collection][id] = doc
	s.mu.Unlock()

	s.announce(domain.ActionUpdated, doc)
	return &doc, nil
}

func (s *DocumentStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Op: OpDelete, Collection: collection, ID: id})
	if err := s.failure(OpDelete, collection); err != nil {
		s.mu.Unlock()
		return err
	}
	doc, ok := s.docs[collection][id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrDocumentNotFound
	}
	delete(s.docs[collection], id)
	s.mu.Unlock()

	s.announce(domain.ActionDeleted, doc)
	return nil
}

func (s *DocumentStore) Subscribe(_ context.Context, channel string, handler repository.ChangeHandler) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: OpSubscribe, Collection: channel})
	if err := s.failure(OpSubscribe, ""); err != nil {
		return nil, err
	}
	if s.subs[channel] == nil {
		s.subs[channel] = make(map[int]repository.ChangeHandler)
	}
	s.nextSub++
	id := s.nextSub
	s.subs[channel][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[channel], id)
			s.mu.Unlock()
		})
	}, nil
}

func (s *DocumentStore) announce(action domain.ChangeAction, doc domain.Document) {
	channel := domain.DocumentsChannel(doc.Collection)
	s.Emit(domain.ChangeEvent{
		Action:     action,
		Channel:    channel,
		Collection: doc.Collection,
		DocumentID: doc.ID,
		OccurredAt: doc.UpdatedAt,
	})
}

func (s *DocumentStore) collection(name string) map[string]domain.Document {
	if s.docs[name] == nil {
		s.docs[name] = make(map[string]domain.Document)
	}
	return s.docs[name]
}

func (s *DocumentStore) failure(op, collection string) error {
	if err, ok := s.failures[op+"/"+collection]; ok {
		return err
	}
	return s.failures[op+"/"]
}

func matches(doc domain.Document, equal map[string]string) bool {
	if len(equal) == 0 {
		return true
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(doc.Fields, &fields); err != nil {
		return false
	}
	for key, want := range equal {
		got, ok := fields[key].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}
