package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPIgnoresForwardedHeaderFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.9:4567"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	if got := ClientIP(req, nil); got != "203.0.113.9" {
		t.Fatalf("untrusted peer should yield remote addr, got %q", got)
	}
}

func TestClientIPTrustsForwardedHeaderFromTrustedProxy(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.5")

	if got := ClientIP(req, trusted); got != "198.51.100.1" {
		t.Fatalf("expected first untrusted hop, got %q", got)
	}
}

func TestClientIPFallsBackToRealIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	req.Header.Set("X-Real-IP", "198.51.100.7")

	if got := ClientIP(req, trusted); got != "198.51.100.7" {
		t.Fatalf("expected X-Real-IP value, got %q", got)
	}
}

func TestNewTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected parse error")
	}
	trusted, err := NewTrustedProxies(nil)
	if err != nil || trusted != nil {
		t.Fatalf("empty input should mean trust none, got %v %v", trusted, err)
	}
}
