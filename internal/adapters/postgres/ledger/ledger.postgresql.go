// Package ledger implements the Credit Ledger (C1) against Postgres: atomic
// freeze/settle/refund via conditional UPDATEs, idempotent by request_id,
// retried on lock contention. Grounded on the teacher's postgres account
// repository (single-UPDATE writes, squirrel for read filters, pgconn error
// mapping) and on spec.md §4.1.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	"github.com/creatorplatform/gateway-core/pkg/mlog"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
	"github.com/creatorplatform/gateway-core/pkg/mopentelemetry"
	"github.com/creatorplatform/gateway-core/pkg/mpostgres"
)

// pg error codes this repository treats as retryable lock contention.
const (
	pgCodeDeadlockDetected = "40P01"
	pgCodeLockNotAvailable = "55P03"
	pgCodeUniqueViolation  = "23505"
)

//go:generate mockgen --destination=ledger.mock.go --package=ledger . Repository

// Repository is the Credit Ledger port: freeze, settle, refund, get_balance,
// each idempotent by request_id (freeze/settle/refund) per spec.md §4.1.
type Repository interface {
	Freeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, requestID, modelRef string, conversationID *uuid.UUID) (mmodel.FreezeResult, error)
	Settle(ctx context.Context, requestID string, actualAmount decimal.Decimal) (mmodel.SettleResult, error)
	Refund(ctx context.Context, requestID string) (mmodel.RefundResult, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (mmodel.BalanceSnapshot, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, page mmodel.Pagination) ([]mmodel.Transaction, error)
}

// PostgreSQLRepository is the Postgres-backed Repository implementation.
type PostgreSQLRepository struct {
	conn       *mpostgres.Connection
	logger     mlog.Logger
	retryMax   int
	retryBaseMS int
}

// New returns a Repository with the retry policy from spec.md §4.1
// (FREEZE_RETRY_MAX/FREEZE_RETRY_BASE_MS).
func New(conn *mpostgres.Connection, logger mlog.Logger, retryMax, retryBaseMS int) *PostgreSQLRepository {
	return &PostgreSQLRepository{conn: conn, logger: logger, retryMax: retryMax, retryBaseMS: retryBaseMS}
}

// Freeze executes the atomic conditional-UPDATE-then-INSERT algorithm from
// spec.md §4.1, retried up to retryMax times with linear backoff on
// lock-wait-timeout/deadlock.
func (r *PostgreSQLRepository) Freeze(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, requestID, modelRef string, conversationID *uuid.UUID) (mmodel.FreezeResult, error) {
	tracer := pkg.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.ledger.freeze")
	defer span.End()

	db, err := r.conn.Primary(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get primary connection", err)
		return mmodel.FreezeResult{}, err
	}

	var result mmodel.FreezeResult

	err = withRetry(ctx, r.retryMax, r.retryBaseMS, func() error {
		var txErr error
		result, txErr = freezeOnce(ctx, db, userID, amount, requestID, modelRef, conversationID)

		return txErr
	})
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "freeze failed", err)
		return mmodel.FreezeResult{}, err
	}

	return result, nil
}

func freezeOnce(ctx context.Context, db *sql.DB, userID uuid.UUID, amount decimal.Decimal, requestID, modelRef string, conversationID *uuid.UUID) (mmodel.FreezeResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mmodel.FreezeResult{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET frozen_balance = frozen_balance + $1, updated_at = now()
		WHERE id = $2 AND balance - frozen_balance >= $1`,
		amount, userID)
	if err != nil {
		return mmodel.FreezeResult{}, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return mmodel.FreezeResult{}, err
	}

	if rows == 0 {
		return mmodel.FreezeResult{InsufficientBalance: true}, nil
	}

	logID := uuid.New()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO freeze_logs (id, request_id, user_id, amount, model_ref, conversation_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'FROZEN', now())`,
		logID, requestID, userID, amount, modelRef, conversationID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation {
			// replay: roll back our speculative UPDATE, report the pre-existing log.
			_ = tx.Rollback()

			existingID, ferr := existingFreezeLogID(ctx, db, requestID)
			if ferr != nil {
				return mmodel.FreezeResult{}, ferr
			}

			return mmodel.FreezeResult{AlreadyFrozen: true, FreezeLogID: existingID}, nil
		}

		return mmodel.FreezeResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return mmodel.FreezeResult{}, err
	}

	return mmodel.FreezeResult{Success: true, FreezeLogID: logID}, nil
}

func existingFreezeLogID(ctx context.Context, db *sql.DB, requestID string) (uuid.UUID, error) {
	var id uuid.UUID

	err := db.QueryRowContext(ctx, `SELECT id FROM freeze_logs WHERE request_id = $1`, requestID).Scan(&id)

	return id, err
}

// Settle executes the conditional UPDATE keyed on the freeze log's FROZEN
// state (spec.md §4.1). A concurrent duplicate observes rowcount=0 and
// returns the pre-computed idempotent result.
func (r *PostgreSQLRepository) Settle(ctx context.Context, requestID string, actualAmount decimal.Decimal) (mmodel.SettleResult, error) {
	tracer := pkg.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.ledger.settle")
	defer span.End()

	db, err := r.conn.Primary(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get primary connection", err)
		return mmodel.SettleResult{}, err
	}

	var result mmodel.SettleResult

	err = withRetry(ctx, r.retryMax, r.retryBaseMS, func() error {
		var txErr error
		result, txErr = settleOnce(ctx, db, requestID, actualAmount)

		return txErr
	})
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "settle failed", err)
		return mmodel.SettleResult{}, err
	}

	return result, nil
}

func settleOnce(ctx context.Context, db *sql.DB, requestID string, actualAmount decimal.Decimal) (mmodel.SettleResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mmodel.SettleResult{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		logID    uuid.UUID
		userID   uuid.UUID
		amount   decimal.Decimal
	)

	err = tx.QueryRowContext(ctx, `
		UPDATE freeze_logs
		SET status = 'SETTLED', settled_at = now(), settled_amount = $2, refund_amount = amount - $2
		WHERE request_id = $1 AND status = 'FROZEN'
		RETURNING id, user_id, amount`,
		requestID, actualAmount).Scan(&logID, &userID, &amount)

	if errors.Is(err, sql.ErrNoRows) {
		return settleIdempotentReplay(ctx, db, requestID)
	}

	if err != nil {
		return mmodel.SettleResult{}, err
	}

	refund := amount.Sub(actualAmount)

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET frozen_balance = frozen_balance - $1, balance = balance - $2, updated_at = now()
		WHERE id = $3`,
		amount, actualAmount, userID)
	if err != nil {
		return mmodel.SettleResult{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, request_id, kind, delta, created_at)
		VALUES ($1, $2, $3, 'SETTLE', $4, now())`,
		uuid.New(), userID, requestID, actualAmount.Neg())
	if err != nil {
		return mmodel.SettleResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return mmodel.SettleResult{}, err
	}

	return mmodel.SettleResult{RefundAmount: refund}, nil
}

func settleIdempotentReplay(ctx context.Context, db *sql.DB, requestID string) (mmodel.SettleResult, error) {
	var (
		status       string
		settledAmt   sql.NullString
		refundAmt    sql.NullString
	)

	err := db.QueryRowContext(ctx, `
		SELECT status, settled_amount, refund_amount FROM freeze_logs WHERE request_id = $1`,
		requestID).Scan(&status, &settledAmt, &refundAmt)
	if err != nil {
		return mmodel.SettleResult{}, err
	}

	if status != string(mmodel.FreezeStatusSettled) {
		return mmodel.SettleResult{}, pkg.InternalError{Code: "SETTLE_INVALID_STATE", Message: "settle called on a freeze log not in FROZEN or SETTLED state"}
	}

	refund := decimal.Zero
	if refundAmt.Valid {
		refund, _ = decimal.NewFromString(refundAmt.String)
	}

	return mmodel.SettleResult{AlreadySettled: true, RefundAmount: refund}, nil
}

// Refund executes the full-refund conditional UPDATE from spec.md §4.1.
func (r *PostgreSQLRepository) Refund(ctx context.Context, requestID string) (mmodel.RefundResult, error) {
	tracer := pkg.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.ledger.refund")
	defer span.End()

	db, err := r.conn.Primary(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get primary connection", err)
		return mmodel.RefundResult{}, err
	}

	var result mmodel.RefundResult

	err = withRetry(ctx, r.retryMax, r.retryBaseMS, func() error {
		var txErr error
		result, txErr = refundOnce(ctx, db, requestID)

		return txErr
	})
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "refund failed", err)
		return mmodel.RefundResult{}, err
	}

	return result, nil
}

func refundOnce(ctx context.Context, db *sql.DB, requestID string) (mmodel.RefundResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mmodel.RefundResult{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		userID uuid.UUID
		amount decimal.Decimal
	)

	err = tx.QueryRowContext(ctx, `
		UPDATE freeze_logs
		SET status = 'REFUNDED', settled_at = now(), refund_amount = amount
		WHERE request_id = $1 AND status = 'FROZEN'
		RETURNING user_id, amount`,
		requestID).Scan(&userID, &amount)

	if errors.Is(err, sql.ErrNoRows) {
		return refundIdempotentReplay(ctx, db, requestID)
	}

	if err != nil {
		return mmodel.RefundResult{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET frozen_balance = frozen_balance - $1, updated_at = now() WHERE id = $2`,
		amount, userID)
	if err != nil {
		return mmodel.RefundResult{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, request_id, kind, delta, created_at)
		VALUES ($1, $2, $3, 'REFUND', 0, now())`,
		uuid.New(), userID, requestID)
	if err != nil {
		return mmodel.RefundResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return mmodel.RefundResult{}, err
	}

	return mmodel.RefundResult{Refunded: amount}, nil
}

func refundIdempotentReplay(ctx context.Context, db *sql.DB, requestID string) (mmodel.RefundResult, error) {
	var (
		status string
		amount decimal.Decimal
	)

	err := db.QueryRowContext(ctx, `SELECT status, amount FROM freeze_logs WHERE request_id = $1`, requestID).Scan(&status, &amount)
	if err != nil {
		return mmodel.RefundResult{}, err
	}

	if status != string(mmodel.FreezeStatusRefunded) {
		return mmodel.RefundResult{}, pkg.InternalError{Code: "REFUND_INVALID_STATE", Message: "refund called on a freeze log not in FROZEN or REFUNDED state"}
	}

	return mmodel.RefundResult{AlreadyRefunded: true, Refunded: amount}, nil
}

// GetBalance always reads the primary pool, never the replica, so a caller
// never observes a stale available balance (spec.md §5).
func (r *PostgreSQLRepository) GetBalance(ctx context.Context, userID uuid.UUID) (mmodel.BalanceSnapshot, error) {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return mmodel.BalanceSnapshot{}, err
	}

	var snap mmodel.BalanceSnapshot

	err = db.QueryRowContext(ctx, `SELECT balance, frozen_balance FROM accounts WHERE id = $1`, userID).
		Scan(&snap.Balance, &snap.Frozen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mmodel.BalanceSnapshot{}, pkg.EntityNotFoundError{EntityType: "Account", Code: constant.ErrValidation}
		}

		return mmodel.BalanceSnapshot{}, err
	}

	snap.Available = snap.Balance.Sub(snap.Frozen)

	return snap, nil
}

// ListTransactions returns paged ledger history, most recent first.
func (r *PostgreSQLRepository) ListTransactions(ctx context.Context, userID uuid.UUID, page mmodel.Pagination) ([]mmodel.Transaction, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, request_id, kind, delta, created_at
		FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, page.Limit, (page.Page-1)*page.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mmodel.Transaction

	for rows.Next() {
		var t mmodel.Transaction

		if err := rows.Scan(&t.ID, &t.UserID, &t.RequestID, &t.Kind, &t.Delta, &t.CreatedAt); err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

// withRetry retries fn up to max times with linear backoff on lock-wait
// contention, matching spec.md §4.1's retry policy (default 3 attempts,
// 100/200/300ms). Non-retryable errors return immediately.
func withRetry(ctx context.Context, max, baseMS int, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= max; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(baseMS*attempt) * time.Millisecond):
		}
	}

	return pkg.TransientError{Code: constant.ErrLockWaitExhausted, Message: "lock wait exhausted after retries", Err: lastErr}
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCodeDeadlockDetected || pgErr.Code == pgCodeLockNotAvailable
	}

	return false
}
