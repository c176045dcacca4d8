package keyring

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const credentialsUser = "session"

var (
	// ErrNotFound is returned when habitctl has no stored session.
	ErrNotFound = errors.New("not signed in")
	// ErrKeyringUnavailable is returned when the OS keyring cannot be used.
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Credentials identify the session habitctl acts as.
type Credentials struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// Load reads the stored credentials for service.
func Load(service string) (*Credentials, error) {
	raw, err := keyring.Get(service, credentialsUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("stored credentials are corrupt: %w", err)
	}
	if creds.SessionID == "" || creds.UserID == "" {
		return nil, ErrNotFound
	}
	return &creds, nil
}

// Save stores credentials for service, replacing any previous ones.
func Save(service string, creds Credentials) error {
	if creds.SessionID == "" || creds.UserID == "" {
		return errors.New("credentials cannot be empty")
	}
	payload, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if err := keyring.Set(service, credentialsUser, string(payload)); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

// Delete forgets the stored credentials. Deleting nothing is not an error.
func Delete(service string) error {
	err := keyring.Delete(service, credentialsUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}
