// Package prompts holds the system prompts the pipeline binds to its two
// LLM roles: the coding agent and the title generator.
package prompts

import (
	_ "embed"
	"strings"
)

//go:embed system_agent.txt
var agentSystemPrompt string

//go:embed system_title.txt
var titleSystemPrompt string

// Agent returns the built-in coding agent system prompt.
func Agent() string {
	return strings.TrimSpace(agentSystemPrompt)
}

// Title returns the narrowly-scoped title generator prompt.
func Title() string {
	return strings.TrimSpace(titleSystemPrompt)
}

// Combine joins the built-in agent prompt with an optional override section.
func Combine(extra string) string {
	trimmed := strings.TrimSpace(extra)
	if trimmed == "" {
		return Agent()
	}
	return Agent() + "\n\n" + trimmed
}
