package contentsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/rs/zerolog"
)

// DefaultScreenPath is the screen existence endpoint relative to the base URL.
const DefaultScreenPath = "/v1/screens/existScreenWithScreenCode"

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// ContentSource performs the remote existence/content check for a screen code.
// Implementations must not retry.
type ContentSource interface {
	CheckScreen(ctx context.Context, screenCode string) (models.RawResponse, error)
}

// Client talks to the content source over HTTP/JSON.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a Client for baseURL + screenPath. The timeout bounds each call.
func NewClient(baseURL, screenPath string, timeout time.Duration, logger zerolog.Logger) *Client {
	if screenPath == "" {
		screenPath = DefaultScreenPath
	}
	return &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + screenPath,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CheckScreen posts the screen code and returns the decoded response object.
// Every failure is wrapped with models.ErrTransport.
func (c *Client) CheckScreen(ctx context.Context, screenCode string) (models.RawResponse, error) {
	if screenCode == "" {
		return nil, errors.New("invalid screen code: must be a non-empty string")
	}

	body, err := json.Marshal(models.ScreenCheckRequest{ScreenCode: screenCode})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize screen check request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("url", c.endpoint).Str("screen_code", screenCode).Msg("Checking screen")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", models.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", models.ErrTransport, describeHTTPError(resp, data))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return models.RawResponse{}, nil
	}

	var raw models.RawResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", models.ErrTransport, err)
	}

	c.logger.Debug().Int("status", resp.StatusCode).Int("fields", len(raw)).Msg("Screen check response received")
	return raw, nil
}

func describeHTTPError(resp *http.Response, body []byte) string {
	msg := fmt.Sprintf("HTTP Error: %d", resp.StatusCode)

	var detail models.ErrorDetail
	if err := json.Unmarshal(body, &detail); err == nil {
		switch {
		case detail.Detail != "":
			return msg + " - " + detail.Detail
		case detail.Message != "":
			return msg + " - " + detail.Message
		}
	}

	return msg + " - " + http.StatusText(resp.StatusCode)
}
