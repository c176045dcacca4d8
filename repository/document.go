package repository

import (
	"context"

	"github.com/fastygo/habits/domain"
)

// DocumentFilter narrows a List call. Equal matches top-level string fields exactly.
// A Limit of zero returns every matching document.
type DocumentFilter struct {
	Equal  map[string]string
	Limit  int
	Offset int
}

// WhereEqual builds a filter matching a single field.
func WhereEqual(field, value string) DocumentFilter {
	return DocumentFilter{Equal: map[string]string{field: value}}
}

// ChangeHandler receives realtime document events.
type ChangeHandler func(event domain.ChangeEvent)

// DocumentStore is the hosted document database the habit client talks to.
type DocumentStore interface {
	List(ctx context.Context, collection string, filter DocumentFilter) ([]domain.Document, error)
	// Create stores a new document. An empty id asks the store to assign one.
	Create(ctx context.Context, collection, id string, fields domain.Fields) (*domain.Document, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields domain.Fields) (*domain.Document, error)
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, channel string, handler ChangeHandler) (func(), error)
}

// ChangeFeed fans document events out to subscribers.
type ChangeFeed interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
	Subscribe(ctx context.Context, channel string, handler ChangeHandler) (func(), error)
}
