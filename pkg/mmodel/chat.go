package mmodel

import "github.com/google/uuid"

// PersistJob is the Persistence Queue (C3) job payload: the durable record
// of one completed chat turn waiting to be written to the Conversation
// Store. ConversationID is nil when the turn's first message must create a
// new conversation.
type PersistJob struct {
	ConversationID *uuid.UUID
	UserID         uuid.UUID
	ProjectID      *uuid.UUID
	AgentID        *uuid.UUID
	Title          string

	UserText        string
	UserTokens      int64
	AssistantText   string
	AssistantTokens int64
	ModelRef        string

	Attempt int
}

// ContentBlock is one block of a provider message. Text is always set; Cache
// is non-nil only for providers that support an explicit cache directive on
// content blocks (spec.md §4.5/§4.7).
type ContentBlock struct {
	Text  string     `json:"text"`
	Cache *CacheHint `json:"cache,omitempty"`
}

// CacheHint marks a content block as a cacheable prefix for providers that
// support it (e.g. an Anthropic-style `cache_control` block).
type CacheHint struct {
	Type string `json:"type"` // "ephemeral"
}

// PromptMessage is one ordered message to send upstream. Blocks has exactly
// one element for plain-string providers and may have more for multipart
// providers.
type PromptMessage struct {
	Role   MessageRole    `json:"role"`
	Blocks []ContentBlock `json:"blocks"`
}

// PromptPlan is C5's output: the assembled system prompt, the ordered
// message list, and an estimate of the input token count.
type PromptPlan struct {
	SystemPrompt     PromptMessage
	Messages         []PromptMessage
	EstInputTokens   int64
	PersonaInUserMsg bool // true when persona detail was prepended to the user turn instead of the system prompt
}

// SamplingParams carries the per-request sampling configuration sent
// upstream (spec.md §4.5).
type SamplingParams struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// StreamChunk is one item of the async sequence a Provider yields
// (spec.md §4.7).
type StreamChunk struct {
	Delta string
	Done  bool
	Err   error

	// PromptTokens/CompletionTokens are non-zero only on the final chunk,
	// and only when the provider actually surfaces usage accounting.
	PromptTokens     int64
	CompletionTokens int64
}
