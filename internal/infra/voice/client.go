package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	domvoice "github.com/wellora/wellcheck/internal/domain/voice"
)

// Client submits audio samples to the voice feature microservice. Voice
// analysis is optional context for the assessment, so the client never
// returns a transport error to callers: any failure comes back as an
// Analysis value carrying the failure marker.
type Client struct {
	serviceURL string
	httpClient *http.Client
}

// NewClient builds a voice analysis client. An empty service URL disables
// voice analysis entirely.
func NewClient(serviceURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		serviceURL: strings.TrimRight(strings.TrimSpace(serviceURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Analyze uploads the audio bytes and returns the extracted acoustic
// features. A nil result with nil error means no analysis was attempted
// (no audio, or the service is not configured).
func (c *Client) Analyze(ctx context.Context, audio []byte, mediaType string) (*domvoice.Analysis, error) {
	if len(audio) == 0 {
		return nil, nil
	}
	if c.serviceURL == "" {
		return &domvoice.Analysis{Error: "voice service not configured"}, nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", fileNameFor(mediaType))
	if err != nil {
		return failed("voice upload could not be prepared", err), nil
	}
	if _, err := part.Write(audio); err != nil {
		return failed("voice upload could not be prepared", err), nil
	}
	if err := writer.Close(); err != nil {
		return failed("voice upload could not be prepared", err), nil
	}

	endpoint := c.serviceURL + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return failed("voice upload could not be prepared", err), nil
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failed("voice analysis unavailable", err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failed("voice analysis unavailable", err), nil
	}

	if resp.StatusCode >= 300 {
		return &domvoice.Analysis{
			Error:   "voice analysis failed",
			Details: fmt.Sprintf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body))),
		}, nil
	}

	var analysis domvoice.Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return failed("voice analysis returned malformed data", err), nil
	}
	return &analysis, nil
}

func failed(message string, err error) *domvoice.Analysis {
	return &domvoice.Analysis{Error: message, Details: err.Error()}
}

func fileNameFor(mediaType string) string {
	switch {
	case strings.Contains(mediaType, "wav"):
		return "sample.wav"
	case strings.Contains(mediaType, "mp3") || strings.Contains(mediaType, "mpeg"):
		return "sample.mp3"
	case strings.Contains(mediaType, "ogg"):
		return "sample.ogg"
	default:
		return "sample.m4a"
	}
}
