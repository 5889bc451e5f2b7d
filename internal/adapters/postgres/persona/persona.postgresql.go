// Package persona implements the Persona (Project) catalog repository.
// Grounded on the teacher's account repository layout, using lib/pq's
// pq.Array for the keywords[]/taboos[] text-array columns since the pgx
// stdlib driver alone doesn't scan Go string slices into Postgres arrays.
package persona

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
	"github.com/creatorplatform/gateway-core/pkg/mpostgres"
)

//go:generate mockgen --destination=persona.mock.go --package=persona . Repository

// Repository is the Persona catalog port.
type Repository interface {
	Create(ctx context.Context, p *mmodel.Persona) (*mmodel.Persona, error)
	Get(ctx context.Context, id uuid.UUID) (*mmodel.Persona, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]mmodel.Persona, error)
	Update(ctx context.Context, p *mmodel.Persona) (*mmodel.Persona, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostgreSQLRepository is the Postgres-backed Repository implementation.
type PostgreSQLRepository struct {
	conn *mpostgres.Connection
}

// New returns a Repository.
func New(conn *mpostgres.Connection) *PostgreSQLRepository {
	return &PostgreSQLRepository{conn: conn}
}

// Create inserts a new persona owned by p.OwnerID.
func (r *PostgreSQLRepository) Create(ctx context.Context, p *mmodel.Persona) (*mmodel.Persona, error) {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return nil, err
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO personas (id, owner_id, display_name, industry, tone, catchphrase, target_audience, content_style, introduction, keywords, taboos, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())`,
		p.ID, p.OwnerID, p.DisplayName, p.Industry, p.Tone, p.Catchphrase, p.TargetAudience, p.ContentStyle, p.Introduction,
		pq.Array(p.Keywords), pq.Array(p.Taboos))
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, p.ID)
}

// Get loads a single persona by id.
func (r *PostgreSQLRepository) Get(ctx context.Context, id uuid.UUID) (*mmodel.Persona, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	var p mmodel.Persona

	err = db.QueryRowContext(ctx, `
		SELECT id, owner_id, display_name, industry, tone, catchphrase, target_audience, content_style, introduction, keywords, taboos, created_at, updated_at
		FROM personas WHERE id = $1`, id).
		Scan(&p.ID, &p.OwnerID, &p.DisplayName, &p.Industry, &p.Tone, &p.Catchphrase, &p.TargetAudience, &p.ContentStyle,
			&p.Introduction, pq.Array(&p.Keywords), pq.Array(&p.Taboos), &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.EntityNotFoundError{EntityType: "Persona", Code: constant.ErrProjectNotFound}
		}

		return nil, err
	}

	return &p, nil
}

// ListByOwner returns every persona owned by ownerID.
func (r *PostgreSQLRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]mmodel.Persona, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_id, display_name, industry, tone, catchphrase, target_audience, content_style, introduction, keywords, taboos, created_at, updated_at
		FROM personas WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mmodel.Persona

	for rows.Next() {
		var p mmodel.Persona
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.DisplayName, &p.Industry, &p.Tone, &p.Catchphrase, &p.TargetAudience,
			&p.ContentStyle, &p.Introduction, pq.Array(&p.Keywords), pq.Array(&p.Taboos), &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	return out, rows.Err()
}

// Update rewrites the persona's mutable bundle fields.
func (r *PostgreSQLRepository) Update(ctx context.Context, p *mmodel.Persona) (*mmodel.Persona, error) {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return nil, err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE personas
		SET display_name = $1, industry = $2, tone = $3, catchphrase = $4, target_audience = $5,
		    content_style = $6, introduction = $7, keywords = $8, taboos = $9, updated_at = now()
		WHERE id = $10`,
		p.DisplayName, p.Industry, p.Tone, p.Catchphrase, p.TargetAudience, p.ContentStyle, p.Introduction,
		pq.Array(p.Keywords), pq.Array(p.Taboos), p.ID)
	if err != nil {
		return nil, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rows == 0 {
		return nil, pkg.EntityNotFoundError{EntityType: "Persona", Code: constant.ErrProjectNotFound}
	}

	return r.Get(ctx, p.ID)
}

// Delete removes a persona. Conversations referencing it keep project_id as
// a reference, not ownership (spec.md §3), so the FK is not cascading.
func (r *PostgreSQLRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM personas WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return pkg.EntityNotFoundError{EntityType: "Persona", Code: constant.ErrProjectNotFound}
	}

	return nil
}
