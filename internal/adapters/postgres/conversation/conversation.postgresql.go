// Package conversation implements the Conversation Store (C4) against
// Postgres: append_turn, get, list, update_title, archive, delete.
// Grounded on the teacher's account repository (squirrel for dynamic
// filters, raw SQL for the fixed-shape append/update-stats statements).
package conversation

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	"github.com/creatorplatform/gateway-core/pkg/mlog"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
	"github.com/creatorplatform/gateway-core/pkg/mopentelemetry"
	"github.com/creatorplatform/gateway-core/pkg/mpostgres"
	"github.com/creatorplatform/gateway-core/internal/services/sequence"
)

//go:generate mockgen --destination=conversation.mock.go --package=conversation . Repository

// Repository is the Conversation Store port.
type Repository interface {
	AppendTurn(ctx context.Context, conversationID *uuid.UUID, owner mmodel.Conversation, userMsg, assistantMsg mmodel.ConversationMessage) (uuid.UUID, error)
	Get(ctx context.Context, conversationID uuid.UUID) (mmodel.ConversationWithMessages, error)
	List(ctx context.Context, ownerID uuid.UUID, filter mmodel.ConversationFilter) ([]mmodel.Conversation, error)
	UpdateTitle(ctx context.Context, conversationID uuid.UUID, title string) error
	Archive(ctx context.Context, conversationID uuid.UUID) error
	Delete(ctx context.Context, conversationID uuid.UUID) error
}

// PostgreSQLRepository is the Postgres-backed Repository implementation.
type PostgreSQLRepository struct {
	conn   *mpostgres.Connection
	logger mlog.Logger
	seq    *sequence.Generator
}

// New returns a Repository.
func New(conn *mpostgres.Connection, logger mlog.Logger, seq *sequence.Generator) *PostgreSQLRepository {
	return &PostgreSQLRepository{conn: conn, logger: logger, seq: seq}
}

// AppendTurn implements spec.md §4.4's append algorithm: create-if-absent,
// generate the (seq_u, seq_a) pair via C2, insert both messages, then a
// single direct UPDATE of the running stats - no SELECT-FOR-UPDATE.
func (r *PostgreSQLRepository) AppendTurn(ctx context.Context, conversationID *uuid.UUID, owner mmodel.Conversation, userMsg, assistantMsg mmodel.ConversationMessage) (uuid.UUID, error) {
	tracer := pkg.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.conversation.append_turn")
	defer span.End()

	db, err := r.conn.Primary(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get primary connection", err)
		return uuid.UUID{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.UUID{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	// convID may arrive pre-allocated: the orchestrator generates it up front
	// so it can emit the conversation_id SSE frame before this (deferred,
	// async) write ever runs. ON CONFLICT DO NOTHING makes the insert safe
	// whether convID is brand new or was already created by an earlier,
	// concurrently-processed turn on the same conversation.
	convID := uuid.New()
	if conversationID != nil {
		convID = *conversationID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, owner_id, agent_id, project_id, title, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'ACTIVE', now(), now())
		ON CONFLICT (id) DO NOTHING`,
		convID, owner.OwnerID, owner.AgentID, owner.ProjectID, owner.Title)
	if err != nil {
		return uuid.UUID{}, err
	}

	seqU, seqA := r.seq.NextPair()

	userMsg.ID = uuid.New()
	userMsg.ConversationID = convID
	userMsg.Sequence = seqU

	assistantMsg.ID = uuid.New()
	assistantMsg.ConversationID = convID
	assistantMsg.Sequence = seqA

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, sequence, role, content, tokens, embedding_status, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, 'PENDING', now()),
			($7, $8, $9, $10, $11, $12, 'PENDING', now())`,
		userMsg.ID, userMsg.ConversationID, userMsg.Sequence, userMsg.Role, userMsg.Content, userMsg.Tokens,
		assistantMsg.ID, assistantMsg.ConversationID, assistantMsg.Sequence, assistantMsg.Role, assistantMsg.Content, assistantMsg.Tokens)
	if err != nil {
		return uuid.UUID{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = message_count + 2, total_tokens = total_tokens + $1, updated_at = now()
		WHERE id = $2`,
		userMsg.Tokens+assistantMsg.Tokens, convID)
	if err != nil {
		return uuid.UUID{}, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.UUID{}, err
	}

	return convID, nil
}

// Get returns the conversation with all its messages in sequence order.
func (r *PostgreSQLRepository) Get(ctx context.Context, conversationID uuid.UUID) (mmodel.ConversationWithMessages, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return mmodel.ConversationWithMessages{}, err
	}

	var c mmodel.Conversation

	err = db.QueryRowContext(ctx, `
		SELECT id, owner_id, agent_id, project_id, title, message_count, total_tokens, status, created_at, updated_at
		FROM conversations WHERE id = $1`, conversationID).
		Scan(&c.ID, &c.OwnerID, &c.AgentID, &c.ProjectID, &c.Title, &c.MessageCount, &c.TotalTokens, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mmodel.ConversationWithMessages{}, pkg.EntityNotFoundError{EntityType: "Conversation", Code: constant.ErrConversationNotFound}
		}

		return mmodel.ConversationWithMessages{}, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, tokens, sequence, embedding_status, created_at
		FROM conversation_messages WHERE conversation_id = $1 ORDER BY sequence ASC`, conversationID)
	if err != nil {
		return mmodel.ConversationWithMessages{}, err
	}
	defer rows.Close()

	var messages []mmodel.ConversationMessage

	for rows.Next() {
		var m mmodel.ConversationMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Tokens, &m.Sequence, &m.EmbeddingStatus, &m.CreatedAt); err != nil {
			return mmodel.ConversationWithMessages{}, err
		}

		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return mmodel.ConversationWithMessages{}, err
	}

	return mmodel.ConversationWithMessages{Conversation: c, Messages: messages}, nil
}

// List applies pagination and optional status/agent/project/keyword
// filters, default order by updated_at desc (spec.md §4.4).
func (r *PostgreSQLRepository) List(ctx context.Context, ownerID uuid.UUID, filter mmodel.ConversationFilter) ([]mmodel.Conversation, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("id", "owner_id", "agent_id", "project_id", "title", "message_count", "total_tokens", "status", "created_at", "updated_at").
		From("conversations").
		Where(sq.Eq{"owner_id": ownerID})

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}

	if filter.AgentID != nil {
		builder = builder.Where(sq.Eq{"agent_id": *filter.AgentID})
	}

	if filter.ProjectID != nil {
		builder = builder.Where(sq.Eq{"project_id": *filter.ProjectID})
	}

	if filter.Keyword != "" {
		builder = builder.Where(sq.ILike{"title": "%" + filter.Keyword + "%"})
	}

	page := filter.Page.Page
	if page < 1 {
		page = 1
	}

	limit := filter.Page.Limit
	if limit <= 0 {
		limit = 20
	}

	builder = builder.OrderBy("updated_at DESC").Limit(uint64(limit)).Offset(uint64((page - 1) * limit))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mmodel.Conversation

	for rows.Next() {
		var c mmodel.Conversation
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.AgentID, &c.ProjectID, &c.Title, &c.MessageCount, &c.TotalTokens, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

// UpdateTitle renames a conversation.
func (r *PostgreSQLRepository) UpdateTitle(ctx context.Context, conversationID uuid.UUID, title string) error {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `UPDATE conversations SET title = $1, updated_at = now() WHERE id = $2`, title, conversationID)
	if err != nil {
		return err
	}

	return requireOneRow(res, "Conversation", constant.ErrConversationNotFound)
}

// Archive marks a conversation ARCHIVED; it remains readable but excluded
// from default list() results once the caller filters on status.
func (r *PostgreSQLRepository) Archive(ctx context.Context, conversationID uuid.UUID) error {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `UPDATE conversations SET status = 'ARCHIVED', updated_at = now() WHERE id = $1`, conversationID)
	if err != nil {
		return err
	}

	return requireOneRow(res, "Conversation", constant.ErrConversationNotFound)
}

// Delete removes a conversation and cascades to its messages (FK ON DELETE
// CASCADE declared in the schema migration).
func (r *PostgreSQLRepository) Delete(ctx context.Context, conversationID uuid.UUID) error {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID)
	if err != nil {
		return err
	}

	return requireOneRow(res, "Conversation", constant.ErrConversationNotFound)
}

func requireOneRow(res sql.Result, entityType, code string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return pkg.EntityNotFoundError{EntityType: entityType, Code: code}
	}

	return nil
}
