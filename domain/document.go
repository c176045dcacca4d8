package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fields is the write-side payload of a document: field name to JSON-encodable value.
type Fields map[string]interface{}

// Document is a schemaless record in a named collection of the backing store.
type Document struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Fields     json.RawMessage `json:"fields"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Decode unmarshals the document fields into v.
func (d *Document) Decode(v interface{}) error {
	if d == nil || len(d.Fields) == 0 {
		return ErrInvalidPayload
	}
	return json.Unmarshal(d.Fields, v)
}

// MergeFields overlays patch onto the encoded fields, keeping keys patch does not name.
func MergeFields(current json.RawMessage, patch Fields) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			return nil, err
		}
	}
	for key, value := range patch {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", key, err)
		}
		merged[key] = encoded
	}
	return json.Marshal(merged)
}

// ChangeAction tags what happened to a document.
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// ChangeEvent is a realtime notification about one document.
type ChangeEvent struct {
	Action     ChangeAction `json:"action"`
	Channel    string       `json:"channel"`
	Collection string       `json:"collection"`
	DocumentID string       `json:"document_id"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// DocumentsChannel names the realtime channel carrying every document event of a collection.
func DocumentsChannel(collection string) string {
	return fmt.Sprintf("collections.%s.documents", collection)
}
