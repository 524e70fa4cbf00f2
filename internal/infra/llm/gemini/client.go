package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/wellora/wellcheck/pkg/errors"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Terminal failure classes callers branch on with errors.Is.
var (
	ErrRateLimited = errors.New("gemini rate limit exhausted")
	ErrTimedOut    = errors.New("gemini request timed out")
)

// IsRateLimited reports whether err is a terminal rate limit failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimedOut reports whether err is an attempt deadline failure.
func IsTimedOut(err error) bool {
	return errors.Is(err, ErrTimedOut)
}

// Part is one element of a multimodal request: either text or inline binary.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inline_data,omitempty"`
}

// Blob carries base64-encoded binary data with its media type.
type Blob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GenerateRequest is the payload accepted by GenerateContent.
type GenerateRequest struct {
	Parts []Part
}

// Config wires runtime settings for the client.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int
	AttemptTimeout  time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MaxRetryDelay   time.Duration
}

// Client performs generateContent requests against the Gemini REST API with
// a bounded retry policy for rate limiting.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a Gemini client. The API key is required; the service
// cannot degrade without a model, so a missing key fails fast at startup.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperrors.Wrap("not_configured", "gemini api key cannot be empty", nil)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, apperrors.Wrap("not_configured", "gemini model cannot be empty", nil)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2048
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 90 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		sleep:      sleepCtx,
	}, nil
}

type generateBody struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []Part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens  int    `json:"max_output_tokens"`
	ResponseMIMEType string `json:"response_mime_type"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *Blob  `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateContent sends the multimodal parts and returns the first candidate
// text. Requests constrain the model to a JSON response body.
//
// Retry state machine: each attempt runs under its own deadline. A 2xx
// returns immediately; a 429 sleeps for the server-provided hint (bounded)
// and retries up to MaxRetries times, after which ErrRateLimited is
// terminal; any other non-2xx is terminal on the first occurrence; an
// attempt deadline expiring maps to ErrTimedOut.
func (c *Client) GenerateContent(ctx context.Context, req GenerateRequest) (string, error) {
	payload, err := json.Marshal(generateBody{
		Contents: []content{{Parts: req.Parts}},
		GenerationConfig: generationConfig{
			MaxOutputTokens:  c.cfg.MaxOutputTokens,
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)

	for attempt := 0; ; attempt++ {
		status, body, err := c.doAttempt(ctx, endpoint, payload)
		if err != nil {
			return "", err
		}

		if status < 300 {
			text, err := firstCandidateText(body)
			if err != nil {
				return "", err
			}
			return text, nil
		}

		if status == http.StatusTooManyRequests {
			if attempt >= c.cfg.MaxRetries {
				return "", fmt.Errorf("%w after %d attempts", ErrRateLimited, attempt+1)
			}
			delay := c.retryDelayFrom(body)
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
			continue
		}

		return "", fmt.Errorf("gemini request failed: status=%d body=%s", status, snippet(body))
	}
}

func (c *Client) doAttempt(ctx context.Context, endpoint string, payload []byte) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return 0, nil, fmt.Errorf("%w after %s", ErrTimedOut, c.cfg.AttemptTimeout)
		}
		return 0, nil, fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read generate response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// retryDelayFrom reads the RetryInfo hint out of a 429 error body. The hint
// is best effort: a missing or unparsable body falls back to the configured
// default, and the result is capped so a hostile hint cannot stall requests.
func (c *Client) retryDelayFrom(body []byte) time.Duration {
	delay := c.cfg.RetryDelay

	var wire struct {
		Error struct {
			Details []map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil {
		for _, detail := range wire.Error.Details {
			typ, _ := detail["@type"].(string)
			if !strings.Contains(typ, "RetryInfo") {
				continue
			}
			hint, _ := detail["retryDelay"].(string)
			if parsed, ok := parseRetryDelay(hint); ok {
				delay = parsed
			}
			break
		}
	}

	if delay > c.cfg.MaxRetryDelay {
		delay = c.cfg.MaxRetryDelay
	}
	return delay
}

var retryDelayPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*s`)

func parseRetryDelay(hint string) (time.Duration, bool) {
	m := retryDelayPattern.FindStringSubmatch(strings.TrimSpace(hint))
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(math.Ceil(seconds)) * time.Second, true
}

func firstCandidateText(body []byte) (string, error) {
	var wire generateResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	for _, candidate := range wire.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
			if part.InlineData != nil && part.InlineData.Data != "" {
				return part.InlineData.Data, nil
			}
		}
	}
	return "", errors.New("gemini returned no candidate text")
}

func snippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
