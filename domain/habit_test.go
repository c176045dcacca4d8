package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{in: "daily", want: FrequencyDaily},
		{in: " Weekly ", want: FrequencyWeekly},
		{in: "MONTHLY", want: FrequencyMonthly},
		{in: "hourly", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFrequency(tt.in)
		if tt.wantErr {
			if !HasCode(err, ErrCodeInvalid) {
				t.Errorf("ParseFrequency(%q) error = %v, want invalid", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFrequency(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestFrequencyLabel(t *testing.T) {
	if got := FrequencyDaily.Label(); got != "Daily" {
		t.Errorf("Label() = %q, want %q", got, "Daily")
	}
	if got := Frequency("").Label(); got != "" {
		t.Errorf("Label() of empty = %q", got)
	}
}

func TestHabitCompletedOn(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	last := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC) // 16 Jan 06:00 in loc
	h := &Habit{LastCompleted: &last}

	if !h.CompletedOn(time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)) {
		t.Error("CompletedOn() same UTC day = false")
	}
	if !h.CompletedOn(time.Date(2024, 1, 16, 9, 0, 0, 0, loc)) {
		t.Error("CompletedOn() same local day = false")
	}
	if h.CompletedOn(time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)) {
		t.Error("CompletedOn() next UTC day = true")
	}
	if (&Habit{}).CompletedOn(last) {
		t.Error("CompletedOn() never completed = true")
	}
}

func TestHabitFromDocument(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := Document{
		ID:        "h1",
		Fields:    json.RawMessage(`{"user_id":"u1","title":"Read","frequency":"daily","streak_count":-2,"last_completed":null}`),
		CreatedAt: created,
	}
	h, err := HabitFromDocument(doc)
	if err != nil {
		t.Fatalf("HabitFromDocument() error = %v", err)
	}
	if h.ID != "h1" || h.OwnerID != "u1" || !h.CreatedAt.Equal(created) {
		t.Errorf("HabitFromDocument() = %+v", h)
	}
	if h.StreakCount != 0 {
		t.Errorf("StreakCount = %d, want negative streaks clamped to 0", h.StreakCount)
	}
	if h.LastCompleted != nil {
		t.Errorf("LastCompleted = %v, want nil", h.LastCompleted)
	}

	if _, err := HabitFromDocument(Document{ID: "empty"}); err == nil {
		t.Error("HabitFromDocument() of empty document succeeded")
	}
}

func TestCompletionFields(t *testing.T) {
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.FixedZone("X", 3600))
	h := &Habit{ID: "h1", StreakCount: 3}

	fields := h.CompletionFields(at)
	if fields["streak_count"] != 4 {
		t.Errorf("streak_count = %v, want 4", fields["streak_count"])
	}
	if got := fields["last_completed"].(time.Time); got.Location() != time.UTC || !got.Equal(at) {
		t.Errorf("last_completed = %v, want %v in UTC", got, at)
	}
	if _, ok := fields["title"]; ok {
		t.Error("CompletionFields() touches fields other than the streak")
	}
	if h.StreakCount != 3 {
		t.Errorf("CompletionFields() mutated the habit: streak %d", h.StreakCount)
	}
}

func TestNewHabitFields(t *testing.T) {
	fields := NewHabitFields("u1", "Read", "", FrequencyWeekly)
	if fields["streak_count"] != 0 || fields["user_id"] != "u1" || fields["frequency"] != "weekly" {
		t.Errorf("NewHabitFields() = %v", fields)
	}
}
