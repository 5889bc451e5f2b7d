// Package account implements the end-user identity side of Token Session
// (C9): resolving a platform login to a durable Account row, converging
// unionid/openid/phone onto one identity per spec.md §4.9. Grounded on the
// teacher's postgres repository layout (single-connection struct, primary
// pool for every write and identity-critical read).
package account

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

//go:generate mockgen --destination=account.mock.go --package=account . Repository

// Repository is the Account port used by C9 Token Session.
type Repository interface {
	// FindOrCreateByIdentity resolves the account for the given identifiers,
	// preferring unionID (authoritative) over openID over phone, and
	// converges all three onto the resolved row. Creates a new account when
	// none of the supplied identifiers match an existing row.
	FindOrCreateByIdentity(ctx context.Context, unionID, openID, phone string) (mmodel.Account, error)
	Get(ctx context.Context, id uuid.UUID) (mmodel.Account, error)
}

// PostgreSQLRepository is the Postgres-backed Repository implementation.
type PostgreSQLRepository struct {
	conn *mpostgres.Connection
}

// New returns a Repository.
func New(conn *mpostgres.Connection) *PostgreSQLRepository {
	return &PostgreSQLRepository{conn: conn}
}

// FindOrCreateByIdentity implements spec.md §4.9's identity reconciliation:
// unionid is authoritative when present; fall back to openid, then phone.
// Whichever identifier resolved the row, all three supplied identifiers are
// written back so future logins under any of them converge on one account.
func (r *PostgreSQLRepository) FindOrCreateByIdentity(ctx context.Context, unionID, openID, phone string) (mmodel.Account, error) {
	db, err := r.conn.Primary(ctx)
	if err != nil {
		return mmodel.Account{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mmodel.Account{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := lookup(ctx, tx, unionID, openID, phone)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return mmodel.Account{}, err
	}

	var acc mmodel.Account

	if errors.Is(err, sql.ErrNoRows) {
		acc, err = insert(ctx, tx, unionID, openID, phone)
		if err != nil {
			return mmodel.Account{}, err
		}
	} else {
		acc, err = converge(ctx, tx, existing, unionID, openID, phone)
		if err != nil {
			return mmodel.Account{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return mmodel.Account{}, err
	}

	return acc, nil
}

func lookup(ctx context.Context, tx *sql.Tx, unionID, openID, phone string) (mmodel.Account, error) {
	switch {
	case unionID != "":
		return scanAccount(tx.QueryRowContext(ctx, selectAccountSQL+" WHERE union_id = $1", unionID))
	case openID != "":
		return scanAccount(tx.QueryRowContext(ctx, selectAccountSQL+" WHERE open_id = $1", openID))
	case phone != "":
		return scanAccount(tx.QueryRowContext(ctx, selectAccountSQL+" WHERE phone = $1", phone))
	default:
		return mmodel.Account{}, sql.ErrNoRows
	}
}

func insert(ctx context.Context, tx *sql.Tx, unionID, openID, phone string) (mmodel.Account, error) {
	id := uuid.New()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, open_id, union_id, phone, level_code, balance, frozen_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'FREE', 0, 0, now(), now())`,
		id, nullable(openID), nullable(unionID), nullable(phone))
	if err != nil {
		return mmodel.Account{}, err
	}

	return scanAccount(tx.QueryRowContext(ctx, selectAccountSQL+" WHERE id = $1", id))
}

func converge(ctx context.Context, tx *sql.Tx, acc mmodel.Account, unionID, openID, phone string) (mmodel.Account, error) {
	if unionID == "" {
		unionID = acc.UnionID
	}

	if openID == "" {
		openID = acc.OpenID
	}

	if phone == "" {
		phone = acc.Phone
	}

	if unionID == acc.UnionID && openID == acc.OpenID && phone == acc.Phone {
		return acc, nil
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET union_id = $1, open_id = $2, phone = $3, updated_at = now()
		WHERE id = $4`,
		nullable(unionID), nullable(openID), nullable(phone), acc.ID)
	if err != nil {
		return mmodel.Account{}, err
	}

	return scanAccount(tx.QueryRowContext(ctx, selectAccountSQL+" WHERE id = $1", acc.ID))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}

	return s
}

const selectAccountSQL = `
	SELECT id, open_id, union_id, phone, level_code, balance, frozen_balance, created_at, updated_at
	FROM accounts`

// Get loads an account by id.
func (r *PostgreSQLRepository) Get(ctx context.Context, id uuid.UUID) (mmodel.Account, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return mmodel.Account{}, err
	}

	return scanAccount(db.QueryRowContext(ctx, selectAccountSQL+" WHERE id = $1", id))
}

func scanAccount(row *sql.Row) (mmodel.Account, error) {
	var (
		acc    mmodel.Account
		openID sql.NullString
		union  sql.NullString
		phone  sql.NullString
	)

	err := row.Scan(&acc.ID, &openID, &union, &phone, &acc.LevelCode, &acc.Balance, &acc.FrozenBalance, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mmodel.Account{}, pkg.EntityNotFoundError{EntityType: "Account", Code: constant.ErrValidation}
		}

		return mmodel.Account{}, err
	}

	acc.OpenID = openID.String
	acc.UnionID = union.String
	acc.Phone = phone.String

	return acc, nil
}
