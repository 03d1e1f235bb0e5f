package domain

import "time"

// Agent is the external agent resource, referenced locally by id only.
// Every other property is fetched on demand through the AgentClient.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Model     string    `json:"model,omitempty"`
	Embedding string    `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// AgentConfig is the fixed configuration applied to newly provisioned
// agents. It comes from static configuration, never from request input.
type AgentConfig struct {
	AgentType    string        `json:"agent_type"`
	Model        string        `json:"model"`
	Embedding    string        `json:"embedding"`
	MemoryBlocks []MemoryBlock `json:"memory_blocks"`
}

// MemoryBlock is a labeled section of an agent's core memory.
type MemoryBlock struct {
	ID          string `json:"id,omitempty"`
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	ReadOnly    bool   `json:"read_only,omitempty"`
}

// BlockUpdate is a partial update to a memory block. Nil fields are left
// unchanged.
type BlockUpdate struct {
	Value       *string `json:"value,omitempty"`
	Description *string `json:"description,omitempty"`
	Limit       *int    `json:"limit,omitempty"`
	ReadOnly    *bool   `json:"read_only,omitempty"`
}

type AgentMessage struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Messages []AgentMessage `json:"messages"`
	Usage    ChatUsage      `json:"usage"`
}

type ListMessagesOpts struct {
	Limit  int
	Before string
}
