package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError reports a non-2xx probe response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("probe %s: status %d", e.URL, e.Code)
}

// HTTPProber checks existence with a HEAD request. Hosts that refuse HEAD are
// retried once with a single-byte ranged GET.
type HTTPProber struct {
	client    *http.Client
	userAgent string
}

// NewHTTPProber returns a prober. A nil client gets a default with a 10s ceiling;
// per-probe deadlines come from the caller's context.
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProber{client: client, userAgent: "grokshare-prober/1.0"}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	code, err := p.do(ctx, http.MethodHead, url)
	if err != nil {
		return err
	}
	if code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented {
		if code, err = p.do(ctx, http.MethodGet, url); err != nil {
			return err
		}
	}
	if code < 200 || code >= 300 {
		return &StatusError{URL: url, Code: code}
	}
	return nil
}

func (p *HTTPProber) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	return resp.StatusCode, nil
}
