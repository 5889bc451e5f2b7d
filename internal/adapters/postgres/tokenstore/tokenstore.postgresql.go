// Package tokenstore persists refresh-token records for C9, hashed
// server-side so a database leak never hands out a usable token. Grounded
// on the teacher's repository layout; the rotation/reuse-detection shape is
// this spec's own, since the teacher has no session/token domain.
package tokenstore

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

//go:generate mockgen --destination=tokenstore.mock.go --package=tokenstore . Repository

// Repository is the refresh-token store port.
type Repository interface {
	Create(ctx context.Context, rec *mmodel.RefreshTokenRecord) error
	Get(ctx context.Context, jti uuid.UUID) (*mmodel.RefreshTokenRecord, error)
	GetByHash(ctx context.Context, tokenHash string) (*mmodel.RefreshTokenRecord, error)
	Rotate(ctx context.Context, oldJTI uuid.UUID, next *mmodel.RefreshTokenRecord) error
	RevokeChain(ctx context.Context, jti uuid.UUID) error
}

// PostgreSQLRepository is the Postgres-backed Repository implementation.
type PostgreSQLRepository struct {
	conn *mpostgres.Connection
}

// New returns a Repository.
func New(conn *mpostgres.Connection) *PostgreSQLRepository {
	return &PostgreSQLRepository{conn: conn}
}

// Create inserts a freshly issued refresh token record.
func (r *PostgreSQLRepository) Create(ctx context.Context, rec *mmodel.RefreshTokenRecord) error {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		rec.JTI, rec.UserID, rec.TokenHash, rec.ExpiresAt)

	return err
}

// Get loads a record by its jti.
func (r *PostgreSQLRepository) Get(ctx context.Context, jti uuid.UUID) (*mmodel.RefreshTokenRecord, error) {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return nil, err
	}

	return scanOne(db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM refresh_tokens WHERE id = $1`, jti))
}

// GetByHash loads a record by the SHA-256 hash of the presented token.
func (r *PostgreSQLRepository) GetByHash(ctx context.Context, tokenHash string) (*mmodel.RefreshTokenRecord, error) {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return nil, err
	}

	return scanOne(db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM refresh_tokens WHERE token_hash = $1`, tokenHash))
}

func scanOne(row *sql.Row) (*mmodel.RefreshTokenRecord, error) {
	var rec mmodel.RefreshTokenRecord

	err := row.Scan(&rec.JTI, &rec.UserID, &rec.TokenHash, &rec.ExpiresAt, &rec.RevokedAt, &rec.ReplacedBy, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.EntityNotFoundError{EntityType: "RefreshToken", Code: constant.ErrTokenInvalid}
		}

		return nil, err
	}

	return &rec, nil
}

// Rotate marks oldJTI revoked (pointing at next's jti) and inserts next in
// the same transaction, so a crash between the two never leaves a record
// that is both live and un-replaced.
func (r *PostgreSQLRepository) Rotate(ctx context.Context, oldJTI uuid.UUID, next *mmodel.RefreshTokenRecord) error {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		next.JTI, next.UserID, next.TokenHash, next.ExpiresAt)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = now(), replaced_by = $1
		WHERE id = $2 AND revoked_at IS NULL`,
		next.JTI, oldJTI)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return pkg.UnauthorizedError{Code: constant.ErrRefreshReuse, Message: "refresh token already rotated or revoked"}
	}

	return tx.Commit()
}

// RevokeChain walks the replaced_by chain forward from jti and revokes every
// descendant, used when a reused (already-revoked) refresh token is
// presented - the whole family is compromised and must die.
func (r *PostgreSQLRepository) RevokeChain(ctx context.Context, jti uuid.UUID) error {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		WITH RECURSIVE chain AS (
			SELECT id, replaced_by FROM refresh_tokens WHERE id = $1
			UNION ALL
			SELECT rt.id, rt.replaced_by FROM refresh_tokens rt
			JOIN chain ON rt.id = chain.replaced_by
		)
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE id IN (SELECT id FROM chain) AND revoked_at IS NULL`,
		jti)

	return err
}
