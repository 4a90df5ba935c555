// Package records provides the PostgreSQL-backed table of ledger records.
// The server stores records exactly as clients send them; description and
// amount are ciphertext it cannot read.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophledger/internal/common"
	"github.com/dmitrijs2005/gophledger/internal/dbx"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
	"github.com/dmitrijs2005/gophledger/internal/store/sqlstore"
)

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the record id of ownerID, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqlstore.Columns+` FROM records WHERE owner_id = $1 AND id = $2`, ownerID, id)
	rec, err := sqlstore.ScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// List returns the records selected by q in query order.
func (r *PostgresRepository) List(ctx context.Context, q store.Query) ([]*models.Record, error) {
	tail, args := sqlstore.Where(q, sqlstore.Dollar)
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqlstore.Columns+` FROM records`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Record, 0)
	for rows.Next() {
		rec, err := sqlstore.ScanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert inserts or replaces a record by ID. If the existing row belongs to
// another owner, no row is updated and common.ErrorInvalidArgument is returned.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (` + sqlstore.Columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id)
		DO UPDATE SET
			description = EXCLUDED.description,
			amount = EXCLUDED.amount,
			type = EXCLUDED.type,
			category = EXCLUDED.category,
			payment_method = EXCLUDED.payment_method,
			status = EXCLUDED.status,
			entry_date = EXCLUDED.entry_date,
			due_date = EXCLUDED.due_date,
			is_encrypted = EXCLUDED.is_encrypted,
			group_id = EXCLUDED.group_id,
			installment_current = EXCLUDED.installment_current,
			installment_total = EXCLUDED.installment_total
			WHERE records.owner_id = EXCLUDED.owner_id;
	`
	res, err := r.db.ExecContext(ctx, query, sqlstore.RecordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("record %s owned by another owner: %w", rec.ID, common.ErrorInvalidArgument)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Delete removes the record if present.
func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListAll streams every record of every owner to fn, ordered by owner and id.
// Used by backups.
func (r *PostgresRepository) ListAll(ctx context.Context, fn func(*models.Record) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqlstore.Columns+` FROM records ORDER BY owner_id, id`)
	if err != nil {
		return fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := sqlstore.ScanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}
