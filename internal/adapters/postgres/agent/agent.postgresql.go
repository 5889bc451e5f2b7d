// Package agent implements the Agent and Model catalog repositories
// (SPEC_FULL.md §3's supplemented entities), grounded on the teacher's
// repository layout.
package agent

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
	"github.com/creatorplatform/gateway-core/pkg/mpostgres"
)

//go:generate mockgen --destination=agent.mock.go --package=agent . Repository

// Repository is the Agent catalog port.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*mmodel.Agent, error)
	ListAvailable(ctx context.Context, ownerID uuid.UUID) ([]mmodel.Agent, error)
}

// ModelRepository is the Model catalog port backing C7/C8.
type ModelRepository interface {
	Get(ctx context.Context, ref string) (*mmodel.Model, error)
}

// PostgreSQLRepository is the Postgres-backed Agent Repository.
type PostgreSQLRepository struct {
	conn *mpostgres.Connection
}

// New returns an agent Repository.
func New(conn *mpostgres.Connection) *PostgreSQLRepository {
	return &PostgreSQLRepository{conn: conn}
}

// Get loads a single agent by id.
func (r *PostgreSQLRepository) Get(ctx context.Context, id uuid.UUID) (*mmodel.Agent, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	var a mmodel.Agent

	err = db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, system_prompt, temperature, max_tokens, top_p, frequency_penalty, presence_penalty, model_ref, created_at, updated_at
		FROM agents WHERE id = $1`, id).
		Scan(&a.ID, &a.OwnerID, &a.Name, &a.SystemPrompt, &a.Temperature, &a.MaxTokens, &a.TopP, &a.FrequencyPenalty, &a.PresencePenalty, &a.ModelRef, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.EntityNotFoundError{EntityType: "Agent", Code: constant.ErrAgentNotFound}
		}

		return nil, err
	}

	return &a, nil
}

// ListAvailable returns every platform-provided default agent (owner_id
// null) plus any agent owned by ownerID.
func (r *PostgreSQLRepository) ListAvailable(ctx context.Context, ownerID uuid.UUID) ([]mmodel.Agent, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_id, name, system_prompt, temperature, max_tokens, top_p, frequency_penalty, presence_penalty, model_ref, created_at, updated_at
		FROM agents WHERE owner_id IS NULL OR owner_id = $1
		ORDER BY owner_id NULLS FIRST, name ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mmodel.Agent

	for rows.Next() {
		var a mmodel.Agent
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.SystemPrompt, &a.Temperature, &a.MaxTokens, &a.TopP, &a.FrequencyPenalty, &a.PresencePenalty, &a.ModelRef, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}

		out = append(out, a)
	}

	return out, rows.Err()
}

// PostgreSQLModelRepository is the Postgres-backed ModelRepository.
type PostgreSQLModelRepository struct {
	conn *mpostgres.Connection
}

// NewModelRepository returns a ModelRepository.
func NewModelRepository(conn *mpostgres.Connection) *PostgreSQLModelRepository {
	return &PostgreSQLModelRepository{conn: conn}
}

// Get loads a single model catalog row by ref.
func (r *PostgreSQLModelRepository) Get(ctx context.Context, ref string) (*mmodel.Model, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	var m mmodel.Model

	err = db.QueryRowContext(ctx, `
		SELECT ref, provider, provider_model_id, k_in, k_out, model_multiplier, supports_cache_hint
		FROM models WHERE ref = $1 AND enabled`, ref).
		Scan(&m.Ref, &m.Provider, &m.ProviderModelID, &m.KIn, &m.KOut, &m.ModelMultiplier, &m.SupportsCacheHint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.EntityNotFoundError{EntityType: "Model", Code: constant.ErrAgentNotFound}
		}

		return nil, err
	}

	return &m, nil
}
