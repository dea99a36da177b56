package llm

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation, either side.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model   string
	Prompt  string
	History []Turn
}

// Client completes a prompt against a remote model. Complete never fails:
// transport and response problems come back as user-safe reply text.
type Client interface {
	ID() string
	Complete(ctx context.Context, req Request) string
}
