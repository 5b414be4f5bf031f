package pipeline

import (
	"strings"

	"atelier/internal/llm"
)

// OutputType tags one output of an agent turn.
type OutputType string

const (
	OutputText     OutputType = "text"
	OutputToolCall OutputType = "tool_call"
)

// Output is one tagged item of a turn. Providers that think aloud emit a
// text output and tool call outputs in the same turn.
type Output struct {
	Type     OutputType    `json:"type"`
	Role     string        `json:"role"`
	Content  string        `json:"content,omitempty"`
	ToolCall *llm.ToolCall `json:"tool_call,omitempty"`
}

// Turn is the ordered output list of one coding agent invocation.
type Turn struct {
	Outputs []Output `json:"outputs"`
}

// turnFromChoice maps a provider choice onto the tagged output union the
// router consumes, so nothing downstream sees provider-specific shapes.
func turnFromChoice(choice llm.ChatChoice) Turn {
	var t Turn
	msg := choice.Message
	if strings.TrimSpace(msg.Content) != "" {
		t.Outputs = append(t.Outputs, Output{
			Type:    OutputText,
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	for i := range msg.ToolCalls {
		call := msg.ToolCalls[i]
		t.Outputs = append(t.Outputs, Output{
			Type:     OutputToolCall,
			Role:     msg.Role,
			ToolCall: &call,
		})
	}
	return t
}

func (t Turn) hasAssistantText() bool {
	for _, out := range t.Outputs {
		if out.Type == OutputText && out.Role == "assistant" {
			return true
		}
	}
	return false
}

func (t Turn) hasToolCalls() bool {
	for _, out := range t.Outputs {
		if out.Type == OutputToolCall {
			return true
		}
	}
	return false
}

// toolCalls returns the turn's pending tool calls in order.
func (t Turn) toolCalls() []llm.ToolCall {
	var calls []llm.ToolCall
	for _, out := range t.Outputs {
		if out.Type == OutputToolCall && out.ToolCall != nil {
			calls = append(calls, *out.ToolCall)
		}
	}
	return calls
}

// assistantMessage rebuilds the transcript message for this turn.
func (t Turn) assistantMessage() llm.Message {
	msg := llm.Message{Role: "assistant"}
	var texts []string
	for _, out := range t.Outputs {
		switch out.Type {
		case OutputText:
			texts = append(texts, out.Content)
		case OutputToolCall:
			if out.ToolCall != nil {
				msg.ToolCalls = append(msg.ToolCalls, *out.ToolCall)
			}
		}
	}
	msg.Content = strings.Join(texts, "\n\n")
	return msg
}

// shouldContinue implements the turn router: only a turn carrying assistant
// text and zero pending tool calls is a final answer. Text alone is not
// enough to stop, and a turn with neither gives no decision yet.
func shouldContinue(t Turn) bool {
	return !(t.hasAssistantText() && !t.hasToolCalls())
}

// finalText extracts the reply from the last turn, concatenating text
// fragments if the provider split them. Empty means the caller falls back.
func finalText(t Turn) string {
	var texts []string
	for _, out := range t.Outputs {
		if out.Type == OutputText && out.Role == "assistant" {
			texts = append(texts, out.Content)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n\n"))
}
