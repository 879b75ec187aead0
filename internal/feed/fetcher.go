package feed

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RelayError is the structured failure the relay boundary reports, with an
// HTTP-equivalent status: 400 invalid URL, 403 blocked host, 502 upstream
// fetch failure.
type RelayError struct {
	Code    int
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("feed relay: %d %s", e.Code, e.Message)
}

// blockedHosts are cloud-metadata and local names that must never be fetched
// regardless of how they resolve.
var blockedHosts = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"metadata.goog":            {},
	"169.254.169.254":          {},
}

// Result is the raw calendar text plus the upstream cache hint.
type Result struct {
	Body      string
	CacheHint string // upstream Cache-Control, passed through untouched
}

// Fetcher retrieves raw calendar feed text the way the same-origin relay
// does: HTTPS only, private and metadata hosts blocked before any request is
// made.
type Fetcher struct {
	rc *resty.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{rc: resty.New()}
}

// Fetch validates the feed URL and retrieves its body. webcal:// is
// normalized to https:// first; anything that is not HTTPS after
// normalization is rejected.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	u, err := NormalizeFeedURL(rawURL)
	if err != nil {
		return Result{}, err
	}

	resp, err := f.rc.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString()).
		Get(u)
	if err != nil {
		log.Err(err).Str("url", redactURL(u)).Msg("feed fetch failed")
		return Result{}, &RelayError{Code: 502, Message: "upstream fetch failed"}
	}
	if resp.IsError() {
		log.Error().Str("url", redactURL(u)).Str("status", resp.Status()).Msg("feed fetch non-OK")
		return Result{}, &RelayError{Code: 502, Message: fmt.Sprintf("upstream returned %s", resp.Status())}
	}

	return Result{
		Body:      string(resp.Body()),
		CacheHint: resp.Header().Get("Cache-Control"),
	}, nil
}

// NormalizeFeedURL applies the relay's admission rules and returns the URL
// that will actually be fetched.
func NormalizeFeedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), "webcal://") {
		raw = "https://" + raw[len("webcal://"):]
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &RelayError{Code: 400, Message: "invalid feed url"}
	}
	if u.Scheme != "https" {
		return "", &RelayError{Code: 400, Message: "https required"}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", &RelayError{Code: 400, Message: "invalid feed url"}
	}
	if err := checkHost(host); err != nil {
		return "", err
	}
	return u.String(), nil
}

// checkHost rejects names on the blocklist and any IP-literal host inside
// loopback, private or link-local ranges.
func checkHost(host string) error {
	if _, blocked := blockedHosts[host]; blocked {
		return &RelayError{Code: 403, Message: "blocked host"}
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return &RelayError{Code: 403, Message: "blocked address range"}
	}
	return nil
}

// redactURL keeps feed URLs (which often embed access tokens) out of logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	return u.Scheme + "://" + u.Host + "/..."
}

var _ error = (*RelayError)(nil)

// IsRelayError reports whether err is a relay rejection with the given code.
func IsRelayError(err error, code int) bool {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
