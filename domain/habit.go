package domain

import (
	"strings"
	"time"
)

// Collections used by the habit tracker.
const (
	CollectionHabits      = "habits"
	CollectionCompletions = "habit_completions"
)

// Frequency is the cadence a habit is meant to be completed at.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency accepts any casing of a known frequency.
func ParseFrequency(value string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(value)))
	if !f.Valid() {
		return "", NewError(ErrCodeInvalid, "unknown frequency "+value)
	}
	return f, nil
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Label returns the display-cased frequency, e.g. "Daily".
func (f Frequency) Label() string {
	if f == "" {
		return ""
	}
	return strings.ToUpper(string(f[:1])) + string(f[1:])
}

// Habit is a user-owned recurring activity with a completion streak.
type Habit struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"user_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Frequency     Frequency  `json:"frequency"`
	StreakCount   int        `json:"streak_count"`
	LastCompleted *time.Time `json:"last_completed,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CompletedOn reports whether the last completion falls on the calendar day of ref,
// evaluated in ref's location.
func (h *Habit) CompletedOn(ref time.Time) bool {
	if h == nil || h.LastCompleted == nil {
		return false
	}
	last := h.LastCompleted.In(ref.Location())
	y1, m1, d1 := last.Date()
	y2, m2, d2 := ref.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// HabitFromDocument decodes a habits-collection document.
func HabitFromDocument(doc Document) (Habit, error) {
	var habit Habit
	if err := doc.Decode(&habit); err != nil {
		return Habit{}, err
	}
	habit.ID = doc.ID
	habit.CreatedAt = doc.CreatedAt
	habit.UpdatedAt = doc.UpdatedAt
	if habit.StreakCount < 0 {
		habit.StreakCount = 0
	}
	return habit, nil
}

// NewHabitFields returns the fields of a freshly created habit. The streak always starts at zero.
func NewHabitFields(ownerID, title, description string, frequency Frequency) Fields {
	return Fields{
		"user_id":      ownerID,
		"title":        title,
		"description":  description,
		"frequency":    string(frequency),
		"streak_count": 0,
	}
}

// CompletionFields returns the streak mutation applied after a completion was recorded.
func (h *Habit) CompletionFields(at time.Time) Fields {
	return Fields{
		"streak_count":   h.StreakCount + 1,
		"last_completed": at.UTC(),
	}
}

// Completion is an append-only fact: a user completed a habit at a point in time.
type Completion struct {
	ID          string    `json:"id"`
	HabitID     string    `json:"habit_id"`
	OwnerID     string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Fields returns the document fields of the completion.
func (c Completion) Fields() Fields {
	return Fields{
		"habit_id":     c.HabitID,
		"user_id":      c.OwnerID,
		"completed_at": c.CompletedAt.UTC(),
	}
}

// CompletionFromDocument decodes a completions-collection document.
func CompletionFromDocument(doc Document) (Completion, error) {
	var completion Completion
	if err := doc.Decode(&completion); err != nil {
		return Completion{}, err
	}
	completion.ID = doc.ID
	return completion, nil
}
