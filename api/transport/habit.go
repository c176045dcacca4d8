package transport

import (
	"time"

	"github.com/fastygo/habits/domain"
)

// HabitView is a habit as rendered by clients: the stored fields plus display helpers.
type HabitView struct {
	domain.Habit
	FrequencyLabel string `json:"frequency_label"`
	CompletedToday bool   `json:"completed_today"`
}

// NewHabitViews renders habits relative to now.
func NewHabitViews(habits []domain.Habit, now time.Time) []HabitView {
	views := make([]HabitView, 0, len(habits))
	for i := range habits {
		views = append(views, HabitView{
			Habit:          habits[i],
			FrequencyLabel: habits[i].Frequency.Label(),
			CompletedToday: habits[i].CompletedOn(now),
		})
	}
	return views
}

// LoginResponse carries a new session and its bearer token.
type LoginResponse struct {
	Session *domain.Session `json:"session"`
	Token   string          `json:"token"`
}
