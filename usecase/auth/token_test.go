package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/fastygo/habits/domain"
)

func TestTokenIssuer(t *testing.T) {
	now := time.Now()
	session := &domain.Session{ID: "s1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	t.Run("round trip", func(t *testing.T) {
		issuer := NewTokenIssuer("secret", "habits")
		token, err := issuer.Issue(session)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		claims, err := issuer.Parse(token)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if claims.UserID != "u1" || claims.SessionID != "s1" {
			t.Errorf("claims = %+v", claims)
		}
	})

	t.Run("rejects other secrets and issuers", func(t *testing.T) {
		token, err := NewTokenIssuer("secret", "habits").Issue(session)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		for name, issuer := range map[string]*TokenIssuer{
			"secret": NewTokenIssuer("other", "habits"),
			"issuer": NewTokenIssuer("secret", "someone-else"),
		} {
			if _, err := issuer.Parse(token); !domain.HasCode(err, domain.ErrCodeUnauthorized) {
				t.Errorf("%s: Parse() error = %v, want unauthorized", name, err)
			}
		}
	})

	t.Run("rejects expired and tampered tokens", func(t *testing.T) {
		issuer := NewTokenIssuer("secret", "habits")
		expired := *session
		expired.ExpiresAt = now.Add(-time.Minute)
		token, err := issuer.Issue(&expired)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		if _, err := issuer.Parse(token); !domain.HasCode(err, domain.ErrCodeUnauthorized) {
			t.Errorf("expired: Parse() error = %v, want unauthorized", err)
		}

		good, _ := issuer.Issue(session)
		forged, _ := NewTokenIssuer("other", "habits").Issue(session)
		parts := strings.Split(good, ".")
		tampered := strings.Join(parts[:2], ".") + "." + strings.Split(forged, ".")[2]
		if _, err := issuer.Parse(tampered); !domain.HasCode(err, domain.ErrCodeUnauthorized) {
			t.Errorf("tampered: Parse() error = %v, want unauthorized", err)
		}
	})

	t.Run("refuses to sign without a secret", func(t *testing.T) {
		if _, err := NewTokenIssuer("", "habits").Issue(session); err == nil {
			t.Error("Issue() with empty secret succeeded")
		}
	})
}
