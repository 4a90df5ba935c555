// Package records provides the SQLite-backed table of ledger records kept
// on the client device.
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

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Factory adapts NewSQLiteRepository to sqlstore.RepositoryFactory.
func Factory(db dbx.DBTX) sqlstore.Repository {
	return NewSQLiteRepository(db)
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerID, id string) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqlstore.Columns+` FROM records WHERE owner_id = ? AND id = ?`, ownerID, id)
	rec, err := sqlstore.ScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record[%s]: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context, q store.Query) ([]*models.Record, error) {
	tail, args := sqlstore.Where(q, sqlstore.Question)
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqlstore.Columns+` FROM records`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Record, 0)
	for rows.Next() {
		rec, err := sqlstore.ScanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record rows: %w", err)
	}
	return result, nil
}

// Upsert inserts rec or replaces the row with the same id. A row owned by
// someone else is left alone and reported as invalid.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.Record) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO records (`+sqlstore.Columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			amount = excluded.amount,
			type = excluded.type,
			category = excluded.category,
			payment_method = excluded.payment_method,
			status = excluded.status,
			entry_date = excluded.entry_date,
			due_date = excluded.due_date,
			is_encrypted = excluded.is_encrypted,
			group_id = excluded.group_id,
			installment_current = excluded.installment_current,
			installment_total = excluded.installment_total
		WHERE records.owner_id = excluded.owner_id
	`, sqlstore.RecordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to upsert record[%s]: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record[%s] owned by another owner: %w", rec.ID, common.ErrorInvalidArgument)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete record[%s]: %w", id, err)
	}
	return nil
}
