package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/habits/domain"
)

// stubRow replays one row of the users table.
type stubRow struct {
	values []interface{}
	err    error
}

func (r stubRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan %d columns into %d targets", len(r.values), len(dest))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			if v != nil {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

func userRow(metadata []byte) stubRow {
	created := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	var meta interface{}
	if metadata != nil {
		meta = metadata
	}
	return stubRow{values: []interface{}{"u1", "ada@example.com", "Ada", "active", meta, created, created.Add(time.Hour)}}
}

func TestScanUser(t *testing.T) {
	t.Run("decodes every column", func(t *testing.T) {
		user, err := scanUser(userRow([]byte(`{"tz":"UTC"}`)))
		if err != nil {
			t.Fatalf("scanUser() error = %v", err)
		}
		if user.ID != "u1" || user.Name != "Ada" || user.Email != "ada@example.com" || !user.IsActive() {
			t.Errorf("scanUser() = %+v", user)
		}
		if user.Metadata["tz"] != "UTC" {
			t.Errorf("Metadata = %v, want tz=UTC", user.Metadata)
		}
		if !user.UpdatedAt.After(user.CreatedAt) {
			t.Errorf("UpdatedAt %v not after CreatedAt %v", user.UpdatedAt, user.CreatedAt)
		}
	})

	t.Run("null metadata stays empty", func(t *testing.T) {
		user, err := scanUser(userRow(nil))
		if err != nil {
			t.Fatalf("scanUser() error = %v", err)
		}
		if user.Metadata != nil {
			t.Errorf("Metadata = %v, want nil", user.Metadata)
		}
	})

	t.Run("missing row is user not found", func(t *testing.T) {
		if _, err := scanUser(stubRow{err: pgx.ErrNoRows}); !errors.Is(err, domain.ErrUserNotFound) {
			t.Errorf("scanUser() error = %v, want %v", err, domain.ErrUserNotFound)
		}
	})

	t.Run("corrupt metadata is an error", func(t *testing.T) {
		if _, err := scanUser(userRow([]byte(`{"tz":`))); err == nil {
			t.Error("scanUser() accepted corrupt metadata")
		}
	})
}
