package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "habits.log")
	log, err := New(Config{Level: "debug", Encoding: "json", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Info("habit completed")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}
}

func TestNewBadLevelFallsBack(t *testing.T) {
	log, err := New(Config{Level: "loud", Stderr: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !log.Core().Enabled(0) {
		t.Error("info level disabled after bad level")
	}
}

func TestWithRequestID(t *testing.T) {
	log, _ := New(Config{Level: "info", Stderr: true})
	if WithRequestID(context.Background(), log) != log {
		t.Error("WithRequestID() without an id should return the base logger")
	}
	if WithRequestID(ContextWithRequestID(context.Background(), "req-1"), log) == log {
		t.Error("WithRequestID() did not attach the id")
	}
}
