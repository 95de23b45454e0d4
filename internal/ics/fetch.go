package ics

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	appLog "github.com/tykeal/homeassistant-rental-control/internal/log"
)

// NetworkError covers timeouts, DNS/TLS failures and non-2xx responses
// from a calendar feed. Status is 0 when the request never produced a
// response. Retry policy belongs to the coordinator, never to the
// fetcher itself.
type NetworkError struct {
	Status int
	Cause  error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("feed fetch failed: status %d", e.Status)
	}
	return fmt.Sprintf("feed fetch failed: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// feedCache holds HTTP cache metadata and the last body for one URL so
// a 304 response can be answered without re-downloading the feed. It is
// in-memory only; state does not survive a restart.
type feedCache struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher retrieves ICS feeds over HTTPS with a bounded timeout and
// conditional requests (ETag / Last-Modified). A single Fetcher is
// shared by all subscriptions so connections are pooled, but a failure
// on one URL never affects another.
type Fetcher struct {
	client         *http.Client
	insecureClient *http.Client

	mu    sync.Mutex
	cache map[string]*feedCache
}

// NewFetcher creates a Fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	insecureTransport := http.DefaultTransport.(*http.Transport).Clone()
	insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &Fetcher{
		client:         &http.Client{Timeout: timeout},
		insecureClient: &http.Client{Timeout: timeout, Transport: insecureTransport},
		cache:          make(map[string]*feedCache),
	}
}

// Fetch performs a single GET for url. On 2xx with a calendar-compatible
// content type it returns the raw body; otherwise it returns a
// *NetworkError. It never retries.
func (f *Fetcher) Fetch(ctx context.Context, url string, verifySSL bool) ([]byte, error) {
	if url == "" {
		return nil, &NetworkError{Cause: fmt.Errorf("feed URL is empty")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}

	f.mu.Lock()
	cached := f.cache[url]
	f.mu.Unlock()

	if cached != nil {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	client := f.client
	if !verifySSL {
		client = f.insecureClient
	}

	appLog.Debug("feed fetch start", "url", redactURL(url))

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if cached == nil || len(cached.body) == 0 {
			return nil, &NetworkError{Status: resp.StatusCode, Cause: fmt.Errorf("304 with no cached body")}
		}
		appLog.Debug("feed not modified; using cached body", "url", redactURL(url))
		return cached.body, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !calendarContentType(resp.Header.Get("Content-Type")) {
			return nil, &NetworkError{
				Status: resp.StatusCode,
				Cause:  fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")),
			}
		}
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, &NetworkError{Status: resp.StatusCode, Cause: readErr}
		}

		f.mu.Lock()
		f.cache[url] = &feedCache{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
		}
		f.mu.Unlock()

		appLog.Debug("feed fetch success", "url", redactURL(url), "status", resp.StatusCode, "bytes", len(body))
		return body, nil

	default:
		return nil, &NetworkError{Status: resp.StatusCode, Cause: fmt.Errorf("%s", resp.Status)}
	}
}

// calendarContentType accepts text/calendar and the loose variants some
// platforms serve (text/plain, application/octet-stream, or no header).
func calendarContentType(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "calendar") ||
		strings.Contains(ct, "text/plain") ||
		strings.Contains(ct, "octet-stream")
}

// redactURL hides sensitive parts of a feed URL for logging purposes.
// Platform URLs embed per-listing secrets in the path or query.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	j := i + 3
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
