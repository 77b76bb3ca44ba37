package provision

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/giantswarm/pglitenv/internal/fileutil"
	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrHTTPStatus is returned when the runtime download answers with a
// non-2xx status.
const ErrHTTPStatus = sentinel.Error("unexpected HTTP status")

const (
	// connectTimeout bounds establishing the TCP connection to the download host.
	connectTimeout = 15 * time.Second
	// responseTimeout bounds waiting for response headers once connected.
	responseTimeout = 60 * time.Second
	// userAgent identifies runtime downloads to the serving host.
	userAgent = "pglitenv"
)

// newHTTPClient returns the client used for runtime downloads. There is no
// overall timeout; the download is bounded by the caller's context.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.ResponseHeaderTimeout = responseTimeout
	return &http.Client{Transport: transport}
}

// download fetches url into dst. The body is streamed to a temporary file
// that is renamed over dst only once it has been written completely.
func download(ctx context.Context, client *http.Client, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // body is fully consumed or abandoned

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: %w: HTTP %d", url, ErrHTTPStatus, resp.StatusCode)
	}

	if err := fileutil.WriteFile(dst, resp.Body, 0o644); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	return nil
}
