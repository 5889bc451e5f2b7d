package mmodel

import (
	"time"

	"github.com/google/uuid"
)

// Persona is the Project (persona bundle) entity from spec.md §3.
type Persona struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"ownerId"`
	DisplayName string    `json:"displayName"`
	Industry    string    `json:"industry"`

	Tone             string   `json:"tone,omitempty"`
	Catchphrase      string   `json:"catchphrase,omitempty"`
	TargetAudience   string   `json:"targetAudience,omitempty"`
	ContentStyle     string   `json:"contentStyle,omitempty"`
	Introduction     string   `json:"introduction,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	Taboos           []string `json:"taboos,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Agent is the supplemented Agent entity (SPEC_FULL.md §3): a system-prompt
// template plus sampling defaults. A nil OwnerID means a platform-provided
// default agent shared by every user.
type Agent struct {
	ID      uuid.UUID  `json:"id"`
	OwnerID *uuid.UUID `json:"ownerId,omitempty"`
	Name    string     `json:"name"`

	SystemPrompt string `json:"systemPrompt"`

	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"maxTokens"`
	TopP             float64 `json:"topP"`
	FrequencyPenalty float64 `json:"frequencyPenalty"`
	PresencePenalty  float64 `json:"presencePenalty"`

	// ModelRef names the catalog Model this agent defaults to; the caller's
	// per-request model hint, when present, overrides it.
	ModelRef string `json:"modelRef"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Model is the supplemented catalog row keying C7's provider dispatch and
// C8's fee formula (SPEC_FULL.md §3).
type Model struct {
	Ref              string  `json:"ref"`
	Provider         string  `json:"provider"` // "openai" | "anthropic" | "generic"
	ProviderModelID  string  `json:"providerModelId"`
	KIn              float64 `json:"kIn"`  // estimated-tokens-per-char, input
	KOut             float64 `json:"kOut"` // estimated-tokens-per-char, output
	ModelMultiplier  float64 `json:"modelMultiplier"`
	SupportsCacheHint bool   `json:"supportsCacheHint"`
}
