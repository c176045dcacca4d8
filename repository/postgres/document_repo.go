package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/repository"
)

type documentRepository struct {
	pool   *pgxpool.Pool
	feed   repository.ChangeFeed
	logger *zap.Logger
}

// NewDocumentRepository creates a Postgres-backed DocumentStore. Writes are announced on feed.
func NewDocumentRepository(pool *pgxpool.Pool, feed repository.ChangeFeed, logger *zap.Logger) repository.DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &documentRepository{pool: pool, feed: feed, logger: logger}
}

func (r *documentRepository) List(ctx context.Context, collection string, filter repository.DocumentFilter) ([]domain.Document, error) {
	const query = `
	SELECT id, collection, fields, created_at, updated_at
	FROM documents
	WHERE collection = $1
	  AND fields @> $2::jsonb
	ORDER BY created_at ASC
	LIMIT $3 OFFSET $4
	`
	match, err := json.Marshal(filter.Equal)
	if err != nil || filter.Equal == nil {
		match = []byte("{}")
	}

	rows, err := r.pool.Query(ctx, query, collection, match, pageLimit(filter.Limit), pageOffset(filter.Offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, *doc)
	}
	return documents, rows.Err()
}

func (r *documentRepository) Create(ctx context.Context, collection, id string, fields domain.Fields) (*domain.Document, error) {
	if collection == "" {
		return nil, domain.ErrInvalidPayload
	}
	if id == "" {
		id = uuid.NewString()
	}

	payload, err := domain.MergeFields(nil, fields)
	if err != nil {
		return nil, err
	}

	const query = `
	INSERT INTO documents (id, collection, fields)
	VALUES ($1, $2, $3::jsonb)
	RETURNING id, collection, fields, created_at, updated_at
	`
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id, collection, []byte(payload)))
	if err != nil {
		return nil, err
	}

	r.announce(ctx, domain.ActionCreated, doc)
	return doc, nil
}

func (r *documentRepository) Update(ctx context.Context, collection, id string, fields domain.Fields) (*domain.Document, error) {
	patch, err := domain.MergeFields(nil, fields)
	if err != nil {
		return nil, err
	}

	const query = `
	UPDATE documents
	SET fields = fields || $3::jsonb,
		updated_at = NOW()
	WHERE collection = $1 AND id = $2
	RETURNING id, collection, fields, created_at, updated_at
	`
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, collection, id, []byte(patch)))
	if err != nil {
		return nil, err
	}

	r.announce(ctx, domain.ActionUpdated, doc)
	return doc, nil
}

func (r *documentRepository) Delete(ctx context.Context, collection, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}

	r.announce(ctx, domain.ActionDeleted, &domain.Document{ID: id, Collection: collection})
	return nil
}

func (r *documentRepository) Subscribe(ctx context.Context, channel string, handler repository.ChangeHandler) (func(), error) {
	if r.feed == nil {
		return nil, fmt.Errorf("document store has no change feed")
	}
	return r.feed.Subscribe(ctx, channel, handler)
}

// announce publishes a change after a committed write. A lost notification is logged
// rather than returned: the write itself succeeded.
func (r *documentRepository) announce(ctx context.Context, action domain.ChangeAction, doc *domain.Document) {
	if r.feed == nil {
		return
	}
	event := domain.ChangeEvent{
		Action:     action,
		Channel:    domain.DocumentsChannel(doc.Collection),
		Collection: doc.Collection,
		DocumentID: doc.ID,
		OccurredAt: time.Now().UTC(),
	}
	if err := r.feed.Publish(ctx, event); err != nil {
		r.logger.Warn("change notification not published",
			zap.String("collection", doc.Collection),
			zap.String("document_id", doc.ID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func scanDocument(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Document, error) {
	var doc domain.Document
	var fields []byte

	if err := row.Scan(
		&doc.ID,
		&doc.Collection,
		&fields,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}

	doc.Fields = make([]byte, len(fields))
	copy(doc.Fields, fields)
	return &doc, nil
}
