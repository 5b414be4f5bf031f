// Package provider implements an llm.Client over any OpenAI-compatible chat
// completions endpoint. The wire shape matches llm.ChatRequest/ChatResponse
// directly, so requests and responses pass through without translation.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"atelier/internal/llm"
	"atelier/internal/logging"
)

// Client is a minimal HTTP wrapper around a chat completions API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient wires together the dependencies for API access.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Chat executes a single completion request.
func (c *Client) Chat(ctx context.Context, reqPayload llm.ChatRequest) (llm.ChatResponse, error) {
	var respPayload llm.ChatResponse

	payload, err := json.Marshal(reqPayload)
	if err != nil {
		return respPayload, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return respPayload, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	logging.DevLog("provider: sending %d messages to model %s", len(reqPayload.Messages), reqPayload.Model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return respPayload, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return respPayload, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		logging.ErrorLog("provider API error: %d - %s", resp.StatusCode, string(body))
		return respPayload, classifyHTTPError(resp, string(body))
	}

	if err := json.Unmarshal(body, &respPayload); err != nil {
		logging.ErrorLog("provider response parse error: %v", err)
		return respPayload, fmt.Errorf("parse response: %w", err)
	}
	logging.DevLog("provider: received response with %d choices", len(respPayload.Choices))
	return respPayload, nil
}

func classifyHTTPError(resp *http.Response, body string) error {
	code := strconv.Itoa(resp.StatusCode)
	var errType llm.ErrorType
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		errType = llm.ErrorTypeRateLimit
	case http.StatusPaymentRequired:
		errType = llm.ErrorTypeInsufficientCredit
	case http.StatusUnauthorized:
		errType = llm.ErrorTypeAuth
	case http.StatusForbidden:
		errType = llm.ErrorTypeModeration
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		errType = llm.ErrorTypeProviderDown
	default:
		errType = llm.ErrorTypeUnknown
	}
	pe := llm.NewProviderError("openai-compatible", errType, code, strings.TrimSpace(body))
	if after := resp.Header.Get("Retry-After"); after != "" {
		if secs, err := strconv.Atoi(after); err == nil && secs > 0 {
			d := time.Duration(secs) * time.Second
			pe.RetryAfter = &d
		}
	}
	return pe
}
