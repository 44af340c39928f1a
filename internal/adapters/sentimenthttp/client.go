package sentimenthttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cryptoSignalBot/internal/ports"
)

// Client implements ports.SentimentProvider against the sentiment scoring
// service's REST endpoint. The model behind the endpoint is a black box;
// this adapter only fetches its latest per-symbol score.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     ports.Logger
}

// Config holds configuration for the sentiment service adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  ports.Logger
}

// New creates a new sentiment service client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for sentiment client")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required for sentiment client")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid sentiment base URL '%s': %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}, nil
}

// scoreResponse is the wire format of the scoring service.
type scoreResponse struct {
	Symbol    string  `json:"symbol"`
	Score     float64 `json:"score"`
	Available bool    `json:"available"`
	Mentions  int     `json:"mentions"`
}

// GetSentiment fetches the sentiment score for a symbol as of the given
// time. Returns nil, nil when the service has no score (too few mentions),
// which callers must tolerate.
func (c *Client) GetSentiment(ctx context.Context, symbol string, asOf time.Time) (*float64, error) {
	op := "GetSentiment"

	endpoint := fmt.Sprintf("%s/sentiment?symbol=%s&as_of=%s",
		c.baseURL, url.QueryEscape(symbol), url.QueryEscape(asOf.UTC().Format(time.RFC3339)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrContextCanceled, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fallthrough to decoding
	case http.StatusNotFound:
		// No score for this symbol yet; not an error.
		c.logger.Debug(ctx, op+": no score available", map[string]interface{}{"symbol": symbol})
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s: %w", op, ports.ErrRateLimited)
	default:
		return nil, fmt.Errorf("%s: %w: unexpected status %d", op, ports.ErrScoreUnavailable, resp.StatusCode)
	}

	var body scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if !body.Available {
		c.logger.Debug(ctx, op+": score marked unavailable", map[string]interface{}{"symbol": symbol, "mentions": body.Mentions})
		return nil, nil
	}
	if body.Score < 0 || body.Score > 1 {
		return nil, fmt.Errorf("%s: %w: score %f out of range", op, ports.ErrScoreUnavailable, body.Score)
	}

	score := body.Score
	return &score, nil
}
