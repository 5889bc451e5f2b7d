package mmodel

import (
	"time"

	"github.com/google/uuid"
)

// ConversationStatus is the lifecycle state of a Conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "ACTIVE"
	ConversationArchived ConversationStatus = "ARCHIVED"
)

// Conversation is the Conversation entity from spec.md §3.
type Conversation struct {
	ID           uuid.UUID          `json:"id"`
	OwnerID      uuid.UUID          `json:"ownerId"`
	AgentID      *uuid.UUID         `json:"agentId,omitempty"`
	ProjectID    *uuid.UUID         `json:"projectId,omitempty"`
	Title        string             `json:"title"`
	MessageCount int64              `json:"messageCount"`
	TotalTokens  int64              `json:"totalTokens"`
	Status       ConversationStatus `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// MessageRole is the role of a ConversationMessage.
type MessageRole string

const (
	RoleUser      MessageRole = "USER"
	RoleAssistant MessageRole = "ASSISTANT"
	RoleSystem    MessageRole = "SYSTEM"
)

// EmbeddingStatus tracks the out-of-scope vector-embedding job's view of a
// message (spec.md §1 Non-goals: the embedding jobs themselves are out of
// scope, but the status column they write to is part of the data model).
type EmbeddingStatus string

const (
	EmbeddingPending EmbeddingStatus = "PENDING"
	EmbeddingDone    EmbeddingStatus = "DONE"
	EmbeddingSkipped EmbeddingStatus = "SKIPPED"
)

// ConversationMessage is the append-only Conversation Message entity.
type ConversationMessage struct {
	ID              uuid.UUID       `json:"id"`
	ConversationID  uuid.UUID       `json:"conversationId"`
	Role            MessageRole     `json:"role"`
	Content         string          `json:"content"`
	Tokens          int64           `json:"tokens"`
	Sequence        int64           `json:"sequence"`
	EmbeddingStatus EmbeddingStatus `json:"embeddingStatus"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// ConversationFilter carries the list() query parameters from spec.md §4.4.
type ConversationFilter struct {
	Status    ConversationStatus
	AgentID   *uuid.UUID
	ProjectID *uuid.UUID
	Keyword   string
	Page      Pagination
}

// ConversationWithMessages is the detail view returned by get().
type ConversationWithMessages struct {
	Conversation Conversation
	Messages     []ConversationMessage
}
