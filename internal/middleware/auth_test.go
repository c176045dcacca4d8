package middleware

import (
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/pkg/httpcontext"
	authUC "github.com/fastygo/habits/usecase/auth"
)

func TestJWTAuth(t *testing.T) {
	issuer := authUC.NewTokenIssuer("secret", "habits")
	now := time.Now()
	token, err := issuer.Issue(&domain.Session{ID: "s1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	var gotUser, gotSession string
	called := false
	handler := JWTAuth(issuer, nil)(func(ctx *fasthttp.RequestCtx) {
		called = true
		gotUser = string(ctx.Request.Header.Peek(httpcontext.HeaderUserID))
		gotSession = string(ctx.Request.Header.Peek(httpcontext.HeaderSessionID))
	})

	tests := []struct {
		name       string
		auth       string
		wantStatus int
		wantCalled bool
	}{
		{name: "bearer token", auth: "Bearer " + token, wantStatus: fasthttp.StatusOK, wantCalled: true},
		{name: "bare token", auth: token, wantStatus: fasthttp.StatusOK, wantCalled: true},
		{name: "missing", auth: "", wantStatus: fasthttp.StatusUnauthorized},
		{name: "garbage", auth: "Bearer nope", wantStatus: fasthttp.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called, gotUser, gotSession = false, "", ""
			var ctx fasthttp.RequestCtx
			if tt.auth != "" {
				ctx.Request.Header.Set("Authorization", tt.auth)
			}
			// Spoofed identity must never reach the handler.
			ctx.Request.Header.Set(httpcontext.HeaderUserID, "mallory")
			ctx.Request.Header.Set(httpcontext.HeaderSessionID, "stolen")

			handler(&ctx)

			if ctx.Response.StatusCode() != tt.wantStatus || called != tt.wantCalled {
				t.Fatalf("status = %d called = %v, want %d %v", ctx.Response.StatusCode(), called, tt.wantStatus, tt.wantCalled)
			}
			if called && (gotUser != "u1" || gotSession != "s1") {
				t.Errorf("identity = %q/%q, want u1/s1", gotUser, gotSession)
			}
		})
	}
}
