package postgres

import (
	"encoding/json"
	"time"
)

func marshalMap(data map[string]string) []byte {
	if len(data) == 0 {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

const maxPageSize = 500

// pageLimit is the LIMIT argument for a filter limit. Zero or less lists every row:
// Postgres reads LIMIT NULL as LIMIT ALL. Explicit pages are capped at maxPageSize.
func pageLimit(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func pageOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
