package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/dbx"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
	"github.com/google/uuid"
)

const emailConstraint = "accounts_email_key"

const selectColumns = `id, name, email, password_hash, role, is_verified,
	verification_token_digest, password_reset_digest, password_reset_expires,
	mfa_code_digest, mfa_code_expires, created_at, updated_at, version`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a                        models.Account
		role                     string
		verification, reset, mfa sql.NullString
		resetExpires, mfaExpires sql.NullTime
	)

	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &a.IsVerified,
		&verification, &reset, &resetExpires, &mfa, &mfaExpires,
		&a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return nil, err
	}

	r, err := models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	a.Role = r
	a.VerificationTokenDigest = verification.String
	a.PasswordResetDigest = reset.String
	a.MfaCodeDigest = mfa.String
	if resetExpires.Valid {
		t := resetExpires.Time
		a.PasswordResetExpires = &t
	}
	if mfaExpires.Valid {
		t := mfaExpires.Time
		a.MfaCodeExpires = &t
	}

	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE ` + where

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, `email = $1`, email)
}

// validID reports whether id can match the uuid primary key. Anything else
// is treated as absent so the lookup stays on the index.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresRepository) FindByVerificationToken(ctx context.Context, digest string) (*models.Account, error) {
	if digest == "" {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, `verification_token_digest = $1`, digest)
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, digest string) (*models.Account, error) {
	if digest == "" {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, `password_reset_digest = $1`, digest)
}

func (r *PostgresRepository) Insert(ctx context.Context, a *models.Account) error {
	if err := checkRole(a.Role); err != nil {
		return err
	}

	query :=
		`INSERT INTO accounts (id, name, email, password_hash, role, is_verified,
			verification_token_digest, password_reset_digest, password_reset_expires,
			mfa_code_digest, mfa_code_expires)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at, version`

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role), a.IsVerified,
		nullString(a.VerificationTokenDigest), nullString(a.PasswordResetDigest), nullTime(a.PasswordResetExpires),
		nullString(a.MfaCodeDigest), nullTime(a.MfaCodeExpires),
	).Scan(&a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		if dbx.IsUniqueViolation(err, emailConstraint) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update locks the row, checks the version and writes every mutable field.
// When the repository is bound to an open transaction the caller's
// transaction is used instead of a new one.
func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {
	if err := checkRole(a.Role); err != nil {
		return err
	}
	if !validID(a.ID) {
		return common.ErrorNotFound
	}

	return r.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM accounts WHERE id = $1 FOR UPDATE`, a.ID).Scan(&current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if current != a.Version {
			return common.ErrVersionConflict
		}

		query :=
			`UPDATE accounts SET
				name = $2, email = $3, password_hash = $4, role = $5, is_verified = $6,
				verification_token_digest = $7, password_reset_digest = $8, password_reset_expires = $9,
				mfa_code_digest = $10, mfa_code_expires = $11,
				updated_at = now(), version = version + 1
			 WHERE id = $1
			 RETURNING updated_at, version`

		err = tx.QueryRowContext(ctx, query,
			a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role), a.IsVerified,
			nullString(a.VerificationTokenDigest), nullString(a.PasswordResetDigest), nullTime(a.PasswordResetExpires),
			nullString(a.MfaCodeDigest), nullTime(a.MfaCodeExpires),
		).Scan(&a.UpdatedAt, &a.Version)
		if err != nil {
			if dbx.IsUniqueViolation(err, emailConstraint) {
				return common.ErrorConflict
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if b, ok := r.db.(dbx.TxBeginner); ok {
		return dbx.WithTx(ctx, b, nil, fn)
	}
	return fn(ctx, r.db)
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
