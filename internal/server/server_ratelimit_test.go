package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"edustore/internal/app"
	"edustore/internal/ratelimit"
	"edustore/pkg/storage"
	"edustore/pkg/store"
)

func TestLoginRateLimited(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redisSrv.Addr(), "", "test:ratelimit:auth", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	sessions, err := store.NewJWTSessionStore("0123456789abcdef0123456789abcdef", 15*time.Minute, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	appCore, err := app.New(app.Config{
		Store:         store.NewMemoryStore(),
		Sessions:      sessions,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
		Objects:       storage.NewMemoryObjectStore(),
		Generator:     staticGenerator{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(New(Config{App: appCore, AuthLimiter: limiter}).Router())
	t.Cleanup(srv.Close)

	body := map[string]string{"email": "nobody@example.com", "password": "wrong"}
	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, resp.StatusCode)
		}
	}

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third attempt, got %d payload %v", resp.StatusCode, payload)
	}
	if payload["code"] != "SYSTEM_RATE_LIMITED" {
		t.Fatalf("unexpected code: %v", payload["code"])
	}
	if got := resp.Header.Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After header, got %q", got)
	}
}
