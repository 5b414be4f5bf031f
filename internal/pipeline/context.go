package pipeline

import (
	"fmt"
	"strings"

	"atelier/internal/store"
)

// historyLimit caps how many prior messages are loaded for grounding.
const historyLimit = 10

const historyInstruction = "The messages above are earlier turns of this conversation, " +
	"given to you only for context. Respond only to the new request; do not restate " +
	"or repeat your previous answers."

// renderHistory formats prior messages as ROLE: content lines for the system
// prompt. Returns "" when there is no usable history.
func renderHistory(msgs []store.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, msg := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(msg.Role), msg.Content)
	}
	b.WriteString("\n")
	b.WriteString(historyInstruction)
	return b.String()
}
