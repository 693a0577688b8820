package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"midiscribe/internal/logging"
)

// Download is a fully buffered remote resource.
type Download struct {
	Body []byte
	// ContentType is what the server declared, which may disagree with the bytes.
	ContentType string
}

// StatusError is returned when the remote answered with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.StatusCode)
}

// Fetcher downloads audio from remote URLs.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger

	// Progress, when set, receives a writer that observes the body as it
	// is read. contentLength is -1 when the server did not send one.
	Progress func(contentLength int64) io.Writer
}

// NewFetcher creates a fetcher. A zero timeout means no client timeout;
// the request context still bounds the download.
func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logging.OrNop(logger),
	}
}

// NewFetcherWithClient creates a fetcher on top of an existing client.
func NewFetcherWithClient(client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, logger: logging.OrNop(logger)}
}

// Fetch performs a GET and buffers the whole body in memory.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	started := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.Progress != nil {
		if w := f.Progress(resp.ContentLength); w != nil {
			body = io.TeeReader(resp.Body, w)
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	f.logger.Debug("audio downloaded",
		zap.String("audio_url", rawURL),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &Download{
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
