package mmodel

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a platform end-user: the owner of a Balance, Freeze Logs,
// Conversations, and Personas.
type Account struct {
	ID        uuid.UUID `json:"id"`
	OpenID    string    `json:"openId,omitempty"`
	UnionID   string    `json:"unionId,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	LevelCode string    `json:"levelCode"`

	// Balance is the total credits ever granted. FrozenBalance is reserved,
	// not spendable. Available = Balance - FrozenBalance. Invariant:
	// Balance >= FrozenBalance >= 0 at all times.
	Balance       decimal.Decimal `json:"balance"`
	FrozenBalance decimal.Decimal `json:"frozenBalance"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Available returns the spendable balance.
func (a Account) Available() decimal.Decimal {
	return a.Balance.Sub(a.FrozenBalance)
}

// BalanceSnapshot is the read-only view returned by get_balance.
type BalanceSnapshot struct {
	Balance   decimal.Decimal `json:"balance"`
	Frozen    decimal.Decimal `json:"frozen"`
	Available decimal.Decimal `json:"available"`
}

// FreezeStatus is the lifecycle state of a FreezeLog row.
type FreezeStatus string

const (
	FreezeStatusFrozen   FreezeStatus = "FROZEN"
	FreezeStatusSettled  FreezeStatus = "SETTLED"
	FreezeStatusRefunded FreezeStatus = "REFUNDED"
)

// FreezeLog is the durable record of one freeze/settle-or-refund cycle,
// keyed for idempotent replay by RequestID.
type FreezeLog struct {
	ID             uuid.UUID       `json:"id"`
	RequestID      string          `json:"requestId"`
	UserID         uuid.UUID       `json:"userId"`
	Amount         decimal.Decimal `json:"amount"`
	ModelRef       string          `json:"modelRef"`
	ConversationID *uuid.UUID      `json:"conversationId,omitempty"`
	Status         FreezeStatus    `json:"status"`
	SettledAmount  *decimal.Decimal `json:"settledAmount,omitempty"`
	RefundAmount   *decimal.Decimal `json:"refundAmount,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	SettledAt      *time.Time      `json:"settledAt,omitempty"`
}

// FreezeResult is returned by Repository.Freeze.
type FreezeResult struct {
	Success             bool
	AlreadyFrozen        bool
	InsufficientBalance bool
	FreezeLogID         uuid.UUID
}

// SettleResult is returned by Repository.Settle.
type SettleResult struct {
	AlreadySettled bool
	RefundAmount   decimal.Decimal
}

// RefundResult is returned by Repository.Refund.
type RefundResult struct {
	AlreadyRefunded bool
	Refunded        decimal.Decimal
}

// TransactionKind distinguishes the ledger's read-model rows.
type TransactionKind string

const (
	TransactionKindSettle TransactionKind = "SETTLE"
	TransactionKindRefund TransactionKind = "REFUND"
	TransactionKindGrant  TransactionKind = "GRANT"
)

// Transaction is one row of the user-facing balance history. Delta is the
// signed amount applied to Balance: negative for settle consumption, zero
// for pure refund, positive for a grant/top-up.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	RequestID string          `json:"requestId"`
	Kind      TransactionKind `json:"kind"`
	Delta     decimal.Decimal `json:"delta"`
	CreatedAt time.Time       `json:"createdAt"`
}
