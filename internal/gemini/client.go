package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/liu-chun-wu/SleepGenius/internal"
)

// ErrBadResponse marks a syntactically valid HTTP response whose body
// did not contain a usable candidate. Callers can distinguish it from
// transport failures.
var ErrBadResponse = errors.New("gemini: response contained no candidates")

// Generator produces an answer for an assembled prompt. The chat
// service depends on this interface, not on the HTTP client, so tests
// can substitute a fake.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type apiRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client calls a Gemini-shaped chat-completion endpoint. One request
// per Generate call, no retries.
type Client struct {
	url        string
	httpClient *http.Client
	logger     internal.Logger
}

func NewClient(url string, logger internal.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload := apiRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Errorf("gemini: failed to create request: %v", err)
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Errorf("gemini: request failed: %v", err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Errorf("gemini: endpoint returned %d", resp.StatusCode)
		return "", fmt.Errorf("gemini: endpoint returned %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Errorf("gemini: failed to decode response: %v", err)
		return "", ErrBadResponse
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", ErrBadResponse
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

var _ Generator = (*Client)(nil)
