package mmodel

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FreezeStatus is the lifecycle state of a FreezeLog row.
type FreezeStatus string

const (
	FreezeStatusFrozen   FreezeStatus = "FROZEN"
	FreezeStatusSettled  FreezeStatus = "SETTLED"
	FreezeStatusRefunded FreezeStatus = "REFUNDED"
)

// FreezeLog is the Compute Freeze Log entity from spec.md §3. RequestID is
// the idempotency key for the whole freeze/settle/refund lifecycle of one
// chat turn.
type FreezeLog struct {
	ID             uuid.UUID       `json:"id"`
	RequestID      string          `json:"requestId"`
	UserID         uuid.UUID       `json:"userId"`
	Amount         decimal.Decimal `json:"amount"`
	ModelRef       string          `json:"modelRef"`
	ConversationID *uuid.UUID      `json:"conversationId,omitempty"`
	Status         FreezeStatus    `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	SettledAt      *time.Time      `json:"settledAt,omitempty"`
}

// TransactionKind distinguishes the two terminal-state ledger history rows.
type TransactionKind string

const (
	TransactionKindSettle TransactionKind = "SETTLE"
	TransactionKindRefund TransactionKind = "REFUND"
)

// Transaction is the supplemented ledger-history read model backing
// GET /coin/transactions (spec.md §6), derived from FreezeLog terminal
// transitions.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	RequestID string          `json:"requestId"`
	Kind      TransactionKind `json:"kind"`
	// Delta is the signed amount applied to Balance: negative for a settle
	// consumption, zero for a pure refund (frozen_balance only changes).
	Delta     decimal.Decimal `json:"delta"`
	CreatedAt time.Time       `json:"createdAt"`
}

// FreezeResult is returned by Ledger.Freeze.
type FreezeResult struct {
	Success             bool
	AlreadyFrozen       bool
	InsufficientBalance bool
	FreezeLogID         uuid.UUID
}

// SettleResult is returned by Ledger.Settle.
type SettleResult struct {
	AlreadySettled bool
	RefundAmount   decimal.Decimal
}

// RefundResult is returned by Ledger.Refund.
type RefundResult struct {
	AlreadyRefunded bool
	Refunded        decimal.Decimal
}
