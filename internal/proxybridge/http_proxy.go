package proxybridge

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPProxy implements the HTTP reverse-proxy mode of the Proxy Bridge: a
// request path under a Client's declared callback_url is forwarded, and the
// response streamed back with redirects rewritten to stay inside the
// "/clients/{id}/proxy/" prefix.
type HTTPProxy struct {
	log    *slog.Logger
	client *http.Client
}

func NewHTTPProxy(timeout time.Duration, log *slog.Logger) *HTTPProxy {
	return &HTTPProxy{
		log:    log,
		client: newSafeHTTPClient(timeout),
	}
}

// Forward dials callbackURL+"/"+tail (preserving the incoming query string),
// streams the response into w, and rewrites any redirect Location to stay
// under proxyPrefix. It never surfaces the raw upstream error to the
// caller — a dial failure or non-responding upstream always becomes a 502.
func (p *HTTPProxy) Forward(w http.ResponseWriter, r *http.Request, callbackURL, tail, proxyPrefix string) {
	target, err := buildTargetURL(callbackURL, tail, r.URL.RawQuery)
	if err != nil {
		p.log.Error("proxy: invalid callback URL", "callback_url", callbackURL, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	if err := ValidateCallbackURL(callbackURL); err != nil {
		p.log.Warn("proxy: callback URL rejected by SSRF guard", "callback_url", callbackURL, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	copyHeaders(req.Header, r.Header)
	req.Host = target.Host

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("proxy: upstream unreachable", "callback_url", callbackURL, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if loc := resp.Header.Get("Location"); loc != "" {
		resp.Header.Set("Location", rewriteRedirectLocation(loc, callbackURL, proxyPrefix))
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func buildTargetURL(callbackURL, tail, rawQuery string) (*url.URL, error) {
	base, err := url.Parse(callbackURL)
	if err != nil {
		return nil, err
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(tail, "/")
	base.RawQuery = rawQuery
	return base, nil
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}
