// Package fetch downloads raw JSON payloads from public API endpoints.
package fetch

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const userAgent = "govetl/1.0"

var (
	// ErrInsecureURL is returned for URLs that do not use HTTPS.
	ErrInsecureURL = errors.New("endpoint URL must use https")

	// ErrEmptyResponse is returned when the server answers with an empty body.
	ErrEmptyResponse = errors.New("empty response body")
)

// Client downloads endpoint payloads to local files.
type Client struct {
	http        *http.Client
	zstdDecoder *zstd.Decoder
}

// NewClient creates a download client with the given request timeout.
func NewClient(timeout time.Duration) (*Client, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				// Decoding is handled here so zstd can be offered too.
				DisableCompression: true,
			},
		},
		zstdDecoder: dec,
	}, nil
}

// Close releases decoder resources.
func (c *Client) Close() {
	if c.zstdDecoder != nil {
		c.zstdDecoder.Close()
	}
}

// Download fetches rawURL and streams the decoded body to dest,
// creating parent directories as needed. It returns the number of
// bytes written. A successful response with an empty body removes
// the partial file and returns ErrEmptyResponse.
func (c *Client) Download(ctx context.Context, rawURL, dest string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("parse URL %q: %w", rawURL, err)
	}
	if u.Scheme != "https" {
		return 0, fmt.Errorf("%w: %s", ErrInsecureURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "zstd, gzip, deflate")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("GET %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := c.decodeBody(resp)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	if n == 0 {
		os.Remove(dest)
		return 0, fmt.Errorf("GET %s: %w", rawURL, ErrEmptyResponse)
	}
	return n, nil
}

// decodeBody wraps the response body with the decoder matching its
// Content-Encoding header.
func (c *Client) decodeBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "", "identity":
		return resp.Body, nil
	case "zstd":
		if err := c.zstdDecoder.Reset(resp.Body); err != nil {
			return nil, fmt.Errorf("reset zstd decoder: %w", err)
		}
		return c.zstdDecoder.IOReadCloser(), nil
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gz, nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
