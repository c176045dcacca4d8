package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fastygo/habits/domain"
)

func TestRenderHabits(t *testing.T) {
	now := time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)
	earlier := now.Add(-2 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	var buf bytes.Buffer
	err := renderHabits(&buf, []domain.Habit{
		{ID: "h1", Title: "Read", Frequency: domain.FrequencyDaily, StreakCount: 4, LastCompleted: &earlier},
		{ID: "h2", Title: "Run", Frequency: domain.FrequencyWeekly, StreakCount: 1, LastCompleted: &yesterday},
	}, now)
	if err != nil {
		t.Fatalf("renderHabits() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "4 day streak") || !strings.HasSuffix(strings.TrimSpace(lines[1]), "done") {
		t.Errorf("row 1 = %q, want streak 4 done today", lines[1])
	}
	if !strings.Contains(lines[2], "Weekly") || strings.Contains(lines[2], "done") {
		t.Errorf("row 2 = %q, want weekly and not done today", lines[2])
	}
}

func TestRenderHabitsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := renderHabits(&buf, nil, time.Now()); err != nil {
		t.Fatalf("renderHabits() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No habits yet") {
		t.Errorf("renderHabits() = %q", buf.String())
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"register", "login", "logout", "whoami", "list", "add", "complete", "delete", "history", "watch"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
