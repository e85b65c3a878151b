package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const maxBodySize = 10 << 20

var (
	ErrEmptyBody   = errors.New("empty response body")
	ErrNullPayload = errors.New("response decoded to null")
)

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *logrus.Logger
}

func NewClient(timeout time.Duration, userAgent string, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// FetchJSON GETs url and decodes the body into a generic JSON value.
// Numbers are kept as json.Number. A non-empty apiKey is sent as a bearer
// token.
func (c *Client) FetchJSON(ctx context.Context, url, apiKey string) (any, error) {
	c.logger.Debugf("Fetching JSON from URL: %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Warnf("Request to %s failed", url)
		return nil, fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warnf("Unexpected status %d from %s", resp.StatusCode, url)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body[:min(200, len(body))])}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		c.logger.Debugf("First 200 chars: %s", string(body[:min(200, len(body))]))
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if payload == nil {
		return nil, ErrNullPayload
	}

	c.logger.Debugf("Fetched %d bytes from %s", len(body), url)
	return payload, nil
}
