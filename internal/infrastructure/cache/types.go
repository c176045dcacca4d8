package cache

import (
	"time"

	"github.com/fastygo/habits/domain"
)

// Snapshot is the last habit list fetched successfully for one owner.
type Snapshot struct {
	OwnerID string         `json:"owner_id"`
	SavedAt time.Time      `json:"saved_at"`
	Habits  []domain.Habit `json:"habits"`
}
