package proxybridge

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// S6 — proxy with callback.
func TestHTTPProxyForwardsToCallback(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/foo" || r.URL.RawQuery != "x=1" {
			t.Fatalf("upstream saw path=%s query=%s", r.URL.Path, r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	p := &HTTPProxy{log: discardLogger(), client: upstream.Client()}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/clients/c1/proxy/foo?x=1", nil)
	p.Forward(rec, req, upstream.URL+"/app", "foo", "/clients/c1/proxy")

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q, want 200 ok", rec.Code, rec.Body.String())
	}
}

// S6 — unreachable upstream becomes 502, never the raw dial error.
func TestHTTPProxyUnreachableIsBadGateway(t *testing.T) {
	p := NewHTTPProxy(2*time.Second, discardLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/clients/c1/proxy/foo", nil)
	p.Forward(rec, req, "http://127.0.0.1:1", "foo", "/clients/c1/proxy")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestBuildTargetURL(t *testing.T) {
	u, err := buildTargetURL("https://up.example/app", "foo", "x=1")
	if err != nil {
		t.Fatalf("buildTargetURL: %v", err)
	}
	if got := u.String(); got != "https://up.example/app/foo?x=1" {
		t.Fatalf("target = %q", got)
	}
}

func TestRewriteRedirectLocation(t *testing.T) {
	got := rewriteRedirectLocation("https://up.example/app/bar", "https://up.example/app", "/clients/c1/proxy")
	if got != "/clients/c1/proxy/bar" {
		t.Fatalf("rewritten = %q", got)
	}

	// Cross-origin redirects pass through unchanged.
	got = rewriteRedirectLocation("https://evil.example/steal", "https://up.example/app", "/clients/c1/proxy")
	if got != "https://evil.example/steal" {
		t.Fatalf("cross-origin rewritten = %q, want unchanged", got)
	}
}
