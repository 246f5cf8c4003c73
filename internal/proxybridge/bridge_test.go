package proxybridge

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/filipexyz/orchestrator/internal/domain"
	"github.com/filipexyz/orchestrator/internal/hub"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeHub is a minimal hubPort double for exercising Bridge.ServeHTTP
// without a real Hub/Registry.
type fakeHub struct {
	client      domain.Client
	found       bool
	httpReply   hub.ProxyHTTPResponse
	httpErr     error
	blockHTTP   bool // if true, SendProxyHTTPRequest blocks until ctx is done
}

func (f *fakeHub) FindClient(clientID string) (domain.Client, bool) { return f.client, f.found }

func (f *fakeHub) SendProxyHTTPRequest(ctx context.Context, clientID string, req hub.ProxyHTTPRequest) (hub.ProxyHTTPResponse, error) {
	if f.blockHTTP {
		<-ctx.Done()
		return hub.ProxyHTTPResponse{}, domain.ErrGatewayError
	}
	return f.httpReply, f.httpErr
}

func (f *fakeHub) OpenProxyWS(clientID, path string, headers map[string][]string) (string, <-chan hub.ProxyWSFrame, <-chan hub.ProxyWSClose, error) {
	return "", nil, nil, domain.ErrNotFound
}
func (f *fakeHub) SendProxyWSFrame(requestID string, data []byte, isText bool) {}
func (f *fakeHub) CloseProxyWS(requestID string, code int, reason string)     {}

// S7 — proxy fallback (no callback), success path.
func TestBridgeForwardsOverSocketWhenNoCallback(t *testing.T) {
	b := NewBridge(2*time.Second, discardLogger())
	fh := &fakeHub{
		found:  true,
		client: domain.Client{ID: "c1", Metadata: domain.Metadata{}},
		httpReply: hub.ProxyHTTPResponse{
			Status: http.StatusOK,
			Body:   []byte("ok"),
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/clients/c1/proxy/foo", nil)
	b.ServeHTTP(rec, req, fh, "c1", "foo", "/clients/c1/proxy")

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q, want 200 ok", rec.Code, rec.Body.String())
	}
}

// S7 — proxy fallback, abandon-after-timeout path.
func TestBridgeTimesOutWhenClientDoesNotRespond(t *testing.T) {
	b := NewBridge(50*time.Millisecond, discardLogger())
	fh := &fakeHub{
		found:     true,
		client:    domain.Client{ID: "c1"},
		blockHTTP: true,
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/clients/c1/proxy/foo", nil)
	b.ServeHTTP(rec, req, fh, "c1", "foo", "/clients/c1/proxy")

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
}

func TestBridgeUnknownClientIs404(t *testing.T) {
	b := NewBridge(2*time.Second, discardLogger())
	fh := &fakeHub{found: false}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/clients/missing/proxy/foo", nil)
	b.ServeHTTP(rec, req, fh, "missing", "foo", "/clients/missing/proxy")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
