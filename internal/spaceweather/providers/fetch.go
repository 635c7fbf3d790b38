package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/i474232898/sunflux/internal/spaceweather"
)

const (
	defaultCharset = "utf-8"
	maxBodyBytes   = 16 << 20
)

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// Payload is a raw response body with its declared content type.
type Payload struct {
	URL         string
	ContentType string
	Body        []byte
}

// Charset returns the charset declared in the content type, or utf-8.
func (p *Payload) Charset() string {
	if p.ContentType == "" {
		return defaultCharset
	}
	_, params, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return defaultCharset
	}
	if cs := strings.TrimSpace(params["charset"]); cs != "" {
		return cs
	}
	return defaultCharset
}

// Text decodes the body using the declared charset.
func (p *Payload) Text() (string, error) {
	name := p.Charset()
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", &spaceweather.DecodeError{URL: p.URL, Charset: name, Err: err}
	}
	out, err := enc.NewDecoder().Bytes(p.Body)
	if err != nil {
		return "", &spaceweather.DecodeError{URL: p.URL, Charset: name, Err: err}
	}
	return string(out), nil
}

// Fetcher performs one GET per call, guarded by a circuit breaker so an
// endpoint that keeps failing is left alone for a while.
type Fetcher struct {
	client    *http.Client
	circuit   *gobreaker.CircuitBreaker
	userAgent string
}

// NewFetcher creates a Fetcher. The client's Timeout bounds every call.
func NewFetcher(client *http.Client, name, userAgent string) *Fetcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Fetcher{
		client:    client,
		circuit:   cb,
		userAgent: userAgent,
	}
}

// Get fetches url once. Every failure is a *spaceweather.TransportError.
func (f *Fetcher) Get(ctx context.Context, url string) (*Payload, error) {
	if f.client == nil {
		return nil, &spaceweather.TransportError{URL: url, Err: errNoHTTPClient}
	}

	status := 0
	result, err := f.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			return nil, errServerError
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}

		return &Payload{
			URL:         url,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", errCircuitOpen, err)
			status = 0
		}
		return nil, &spaceweather.TransportError{URL: url, StatusCode: status, Err: err}
	}

	payload, ok := result.(*Payload)
	if !ok {
		return nil, &spaceweather.TransportError{URL: url, Err: fmt.Errorf("unexpected result type from circuit breaker")}
	}
	return payload, nil
}

func logDropped(log *slog.Logger, batch spaceweather.Batch) {
	for _, d := range batch.Dropped {
		log.Warn("dropped malformed record", "index", d.Index, "raw", d.Raw, "error", d.Err)
	}
	if len(batch.Dropped) > 0 {
		log.Info("normalized payload", "records", len(batch.Records), "dropped", len(batch.Dropped))
	}
}
