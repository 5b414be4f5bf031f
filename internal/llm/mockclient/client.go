// Package mockclient provides a deterministic llm.Client used for tests.
package mockclient

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"atelier/internal/llm"
)

// Client replays a scripted sequence of responses. With no script it echoes
// the last user message, which is enough for smoke runs without an API key.
type Client struct {
	mu     sync.Mutex
	script []llm.ChatResponse
	calls  int
	errs   map[int]error // keyed by zero-based call index
}

// New returns an empty mock client in echo mode.
func New() *Client {
	return &Client{errs: make(map[int]error)}
}

// Enqueue appends a scripted response.
func (c *Client) Enqueue(resp llm.ChatResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, resp)
}

// EnqueueText appends an assistant text-only response.
func (c *Client) EnqueueText(content string) {
	c.Enqueue(llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			Message:      llm.Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	})
}

// EnqueueToolCall appends a response requesting a single tool call, with
// content optionally carrying think-aloud text in the same turn.
func (c *Client) EnqueueToolCall(content, toolName, arguments string) {
	c.Enqueue(llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			Message: llm.Message{
				Role:    "assistant",
				Content: content,
				ToolCalls: []llm.ToolCall{{
					ID:       fmt.Sprintf("call-%d", len(c.script)+1),
					Type:     "function",
					Function: llm.FunctionCall{Name: toolName, Arguments: arguments},
				}},
			},
			FinishReason: "tool_calls",
		}},
	})
}

// FailCall makes the nth call (zero-based) return err instead of a response.
func (c *Client) FailCall(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[n] = err
}

// Calls reports how many Chat invocations the client has served.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Chat satisfies the llm.Client interface.
func (c *Client) Chat(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	c.calls++

	if err, ok := c.errs[idx]; ok {
		return llm.ChatResponse{}, err
	}
	if idx < len(c.script) {
		return c.script[idx], nil
	}

	content := "MOCK RESPONSE"
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			if last := strings.TrimSpace(req.Messages[i].Content); last != "" {
				content = "MOCK RESPONSE: " + last
			}
			break
		}
	}
	return llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			Message:      llm.Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: &llm.Usage{PromptTokens: 42, CompletionTokens: 7, TotalTokens: 49},
	}, nil
}
