// Package pipeline drives one chat message through the agentic workflow:
// load the conversation, assemble context, optionally title the
// conversation, run the bounded agent loop, and finalize the assistant
// message. Every stage runs as a checkpointed step so a restarted process
// never repeats a side effect, and any unrecoverable failure lands in the
// apology handler so the user never sees a message stuck in processing.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"atelier/internal/durable"
	"atelier/internal/llm"
	"atelier/internal/logging"
	"atelier/internal/prompts"
	"atelier/internal/store"
	"atelier/internal/tooling"
)

// Event is the inbound "message sent" fact that triggers a workflow run.
// MessageID identifies the assistant placeholder row created by the caller
// in processing status; it doubles as the workflow instance id.
type Event struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	ProjectID      string `json:"projectId"`
	Message        string `json:"message"`
}

// apologyReply is what the user sees after an unrecoverable failure.
const apologyReply = "I'm sorry, but something went wrong while I was working on your request. Please try sending your message again."

// fallbackReply covers the degenerate case of a final turn with no text.
const fallbackReply = "I wasn't able to produce a response this time. Please try again."

// maxToolResultSize truncates oversized tool output before it re-enters the
// model context.
const maxToolResultSize = 50000

// Options tune one pipeline instance.
type Options struct {
	Model          string
	TitleModel     string
	Temperature    float64
	MaxTurns       int
	TitleMaxTokens int
	LLMTimeout     time.Duration
	ToolTimeout    time.Duration
	ScrapeTimeout  time.Duration
	SystemPrompt   string // optional extra section appended to the agent prompt
}

// Pipeline wires the store, the LLM client, and the durable engine together.
type Pipeline struct {
	store  *store.Store
	client llm.Client
	engine *durable.Engine
	opts   Options
	logger *logging.StructuredLogger
}

func New(st *store.Store, client llm.Client, engine *durable.Engine, opts Options, logger *logging.StructuredLogger) *Pipeline {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 20
	}
	if opts.TitleMaxTokens <= 0 {
		opts.TitleMaxTokens = 64
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 2 * time.Minute
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = time.Minute
	}
	if logger == nil {
		logger = logging.NewStructuredLogger(nil, "pipeline", false)
	}
	return &Pipeline{store: st, client: client, engine: engine, opts: opts, logger: logger}
}

// Cancel aborts the in-flight run for the given message id, if any.
func (p *Pipeline) Cancel(messageID string) bool {
	return p.engine.Cancel(messageID)
}

// ProcessMessage executes the workflow for one inbound event. Cancelled runs
// finalize the message as cancelled without touching its content; failed
// runs (after the engine's retries are exhausted) go through the apology
// handler so the message always leaves processing status.
func (p *Pipeline) ProcessMessage(ctx context.Context, evt Event) error {
	log := p.logger.WithInstance(evt.MessageID)
	log.Info("run started", map[string]interface{}{
		"conversation": evt.ConversationID,
		"project":      evt.ProjectID,
	})

	err := p.engine.Execute(ctx, evt.MessageID, func(ctx context.Context, run *durable.Run) error {
		return p.run(ctx, run, evt)
	})
	switch {
	case err == nil:
		log.Info("run finished")
		return nil
	case errors.Is(err, durable.ErrCancelled):
		log.Warn("run cancelled")
		p.finalizeCancelled(evt.MessageID)
		return nil
	default:
		log.Error("run failed", map[string]interface{}{"error": err.Error()})
		p.failRun(evt.MessageID)
		return err
	}
}

func (p *Pipeline) run(ctx context.Context, run *durable.Run, evt Event) error {
	conv, err := durable.Step(ctx, run, "load-conversation", func(ctx context.Context) (store.Conversation, error) {
		c, err := p.store.GetConversation(ctx, evt.ConversationID)
		if errors.Is(err, store.ErrNotFound) {
			// missing conversation is fatal, not transient: abort without retrying
			return store.Conversation{}, durable.Fatal(fmt.Errorf("conversation %s not found", evt.ConversationID))
		}
		return c, err
	})
	if err != nil {
		return err
	}

	history, err := durable.Step(ctx, run, "build-context", func(ctx context.Context) (string, error) {
		msgs, err := p.store.RecentMessages(ctx, evt.ConversationID, historyLimit, evt.MessageID)
		if err != nil {
			return "", err
		}
		return renderHistory(msgs), nil
	})
	if err != nil {
		return err
	}

	if conv.Title == store.SentinelTitle {
		if _, err := durable.Step(ctx, run, "generate-title", func(ctx context.Context) (string, error) {
			return p.generateTitle(ctx, conv.ID, evt.Message)
		}); err != nil {
			return err
		}
	}

	reply, err := p.agentLoop(ctx, run, evt, history)
	if err != nil {
		return err
	}

	if _, err := durable.Step(ctx, run, "finalize", func(ctx context.Context) (bool, error) {
		if err := p.store.FinalizeMessage(ctx, evt.MessageID, reply, store.StatusCompleted); err != nil {
			return false, err
		}
		return true, p.store.TouchConversation(ctx, conv.ID)
	}); err != nil {
		return err
	}
	return nil
}

// agentLoop runs the coding agent until the router sees a final answer or
// the turn budget runs out. Exhausting the budget is treated as a failure
// rather than silently truncating the run.
func (p *Pipeline) agentLoop(ctx context.Context, run *durable.Run, evt Event, history string) (string, error) {
	registry := tooling.ProjectRegistry(p.store, evt.ProjectID, p.opts.ScrapeTimeout)

	system := prompts.Combine(p.opts.SystemPrompt)
	if history != "" {
		system += "\n\n" + history
	}
	transcript := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: evt.Message},
	}

	var last Turn
	final := false
	for turn := 1; turn <= p.opts.MaxTurns; turn++ {
		snapshot := transcript
		t, err := durable.Step(ctx, run, fmt.Sprintf("turn-%02d", turn), func(ctx context.Context) (Turn, error) {
			return p.invokeAgent(ctx, registry, snapshot)
		})
		if err != nil {
			return "", err
		}
		last = t
		transcript = append(transcript, t.assistantMessage())

		if !shouldContinue(t) {
			final = true
			break
		}
		for i, call := range t.toolCalls() {
			call := call
			result, err := durable.Step(ctx, run, fmt.Sprintf("turn-%02d-tool-%02d", turn, i+1), func(ctx context.Context) (string, error) {
				return p.invokeTool(ctx, registry, call)
			})
			if err != nil {
				return "", err
			}
			transcript = append(transcript, llm.Message{
				Role:       "tool",
				Name:       call.Function.Name,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
	if !final {
		return "", fmt.Errorf("agent loop did not reach a final answer within %d turns", p.opts.MaxTurns)
	}

	reply := finalText(last)
	if reply == "" {
		reply = fallbackReply
	}
	return reply, nil
}

// invokeAgent performs one LLM call with the tool set bound and maps the
// response onto the tagged output union.
func (p *Pipeline) invokeAgent(ctx context.Context, registry *tooling.Registry, transcript []llm.Message) (Turn, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.opts.LLMTimeout)
	defer cancel()

	resp, err := p.client.Chat(callCtx, llm.ChatRequest{
		Model:       p.opts.Model,
		Messages:    transcript,
		Tools:       registry.Definitions(),
		Temperature: p.opts.Temperature,
	})
	if err != nil {
		if pe, ok := llm.IsProviderError(err); ok && !pe.Retryable {
			return Turn{}, durable.Fatal(err)
		}
		return Turn{}, err
	}
	if len(resp.Choices) == 0 {
		return Turn{}, errors.New("provider returned no choices")
	}
	return turnFromChoice(resp.Choices[0]), nil
}

// invokeTool dispatches one tool call. Validation problems come back as
// plain strings for the model; only infrastructure errors propagate.
func (p *Pipeline) invokeTool(ctx context.Context, registry *tooling.Registry, call llm.ToolCall) (string, error) {
	tool, ok := registry.Lookup(call.Function.Name)
	if !ok {
		return fmt.Sprintf("Tool %q is not available.", call.Function.Name), nil
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Function.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("The arguments for %s were not valid JSON: %v.", call.Function.Name, err), nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.opts.ToolTimeout)
	defer cancel()

	start := time.Now()
	result, err := tool.Call(callCtx, args)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", call.Function.Name, err)
	}
	logging.DevLog("tool %s completed: %d bytes in %s",
		call.Function.Name, len(result), time.Since(start).Round(time.Millisecond))

	if len(result) > maxToolResultSize {
		result = result[:maxToolResultSize] + fmt.Sprintf(
			"\n\n[TRUNCATED: tool result was %d chars; showing the first %d.]",
			len(result), maxToolResultSize)
	}
	return result, nil
}

// generateTitle runs the single-shot title generation and writes the result
// with a compare-and-set so a concurrent run cannot overwrite it. An empty
// generation leaves the sentinel in place for a later message to try again.
func (p *Pipeline) generateTitle(ctx context.Context, conversationID, message string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.opts.LLMTimeout)
	defer cancel()

	resp, err := p.client.Chat(callCtx, llm.ChatRequest{
		Model: p.opts.TitleModel,
		Messages: []llm.Message{
			{Role: "system", Content: prompts.Title()},
			{Role: "user", Content: message},
		},
		Temperature: 0,
		MaxTokens:   p.opts.TitleMaxTokens,
	})
	if err != nil {
		if pe, ok := llm.IsProviderError(err); ok && !pe.Retryable {
			return "", durable.Fatal(err)
		}
		return "", err
	}

	title := ""
	for _, choice := range resp.Choices {
		if choice.Message.Role == "assistant" {
			title = strings.TrimSpace(choice.Message.Content)
			break
		}
	}
	if title == "" {
		return "", nil
	}
	applied, err := p.store.SetTitleIfSentinel(ctx, conversationID, title)
	if err != nil {
		return "", err
	}
	if !applied {
		return "", nil
	}
	return title, nil
}

// finalizeCancelled marks the message cancelled, leaving content as-is. The
// run context is already dead, so this uses a fresh one.
func (p *Pipeline) finalizeCancelled(messageID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.SetMessageStatus(ctx, messageID, store.StatusCancelled); err != nil {
		logging.ErrorLog("pipeline: mark message %s cancelled: %v", messageID, err)
	}
}

// failRun rewrites the message to a generic apology and completes it so the
// conversation never freezes on a processing placeholder.
func (p *Pipeline) failRun(messageID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.FinalizeMessage(ctx, messageID, apologyReply, store.StatusCompleted); err != nil {
		logging.ErrorLog("pipeline: apology write for message %s failed: %v", messageID, err)
	}
}
