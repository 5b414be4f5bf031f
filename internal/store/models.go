package store

import "time"

// Node types for file tree records.
const (
	NodeTypeFile   = "file"
	NodeTypeFolder = "folder"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message statuses. A message starts as processing and is finalized exactly
// once by the pipeline.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// SentinelTitle is the placeholder a conversation is created with. The title
// generator only runs while the stored title still equals it.
const SentinelTitle = "New chat"

// Conversation groups the messages of one chat session within a project.
type Conversation struct {
	ID        string
	ProjectID string
	Title     string
	UpdatedAt time.Time
}

// Message is one user or assistant entry in a conversation transcript.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	Status         string
	CreatedAt      time.Time
}

// FileNode is one record of a project's virtual file tree. A nil ParentID
// places the node at the project root. Folders never carry content.
type FileNode struct {
	ID        string
	ProjectID string
	ParentID  *string
	Name      string
	Type      string
	Content   string
	UpdatedAt time.Time
}

// IsFolder reports whether the node is a folder.
func (n FileNode) IsFolder() bool {
	return n.Type == NodeTypeFolder
}
