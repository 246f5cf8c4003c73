package proxybridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/filipexyz/orchestrator/internal/security"
)

// ErrInvalidCallbackURL wraps a callback URL that fails validation for any
// reason; callers surface this as a GatewayError without the underlying
// detail, per spec.md §7's "never surface raw upstream errors."
var ErrInvalidCallbackURL = errors.New("invalid callback URL")

// ValidateCallbackURL hardens a Client's declared callback_url against SSRF
// the same way the teacher hardens webhook URLs before dialing them: scheme
// allowlist, blocked hostnames/ports, and a DNS resolution check rejecting
// private/loopback/link-local/metadata-endpoint IPs.
func ValidateCallbackURL(rawURL string) error {
	if err := security.ValidateWebhookURL(rawURL); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCallbackURL, err)
	}
	return nil
}

// newSafeHTTPClient builds the client used to dial a Client's callback URL.
// Its DialContext re-validates the destination IP on every connection
// attempt, including ones made mid-redirect, since ValidateCallbackURL's
// check at request-build time is subject to DNS rebinding between lookup
// and dial. Grounded directly on the teacher's internal/webhook.newSafeHTTPClient.
func newSafeHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := net.LookupIP(host)
			if err != nil {
				return nil, fmt.Errorf("cannot resolve %s: %w", host, err)
			}
			for _, ip := range ips {
				if err := security.ValidateIP(ip); err != nil {
					return nil, fmt.Errorf("blocked destination %s (%s): %w", host, ip, err)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

// rewriteRedirectLocation rewrites an upstream redirect's Location header so
// it stays inside the "/clients/{id}/proxy/" prefix instead of leaking the
// callback's real authority to the browser. Only redirects that target the
// same callback origin (relative, or absolute but matching callbackBase's
// host) are rewritten in place; cross-origin redirects are passed through
// unchanged since there is no proxy prefix that could represent them.
func rewriteRedirectLocation(location, callbackBase, proxyPrefix string) string {
	loc, err := url.Parse(location)
	if err != nil {
		return location
	}
	base, err := url.Parse(callbackBase)
	if err != nil {
		return location
	}
	resolved := base.ResolveReference(loc)

	if resolved.Scheme != base.Scheme || resolved.Host != base.Host {
		return location
	}
	tail := strings.TrimPrefix(resolved.Path, base.Path)
	tail = strings.TrimPrefix(tail, "/")

	rewritten := strings.TrimSuffix(proxyPrefix, "/") + "/" + tail
	if resolved.RawQuery != "" {
		rewritten += "?" + resolved.RawQuery
	}
	return rewritten
}
