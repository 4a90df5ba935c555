package sqlstore

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
)

// Columns is the select list shared by record repositories, in the order
// ScanRecord expects.
const Columns = `id, owner_id, description, amount, type, category, payment_method, status,
	entry_date, due_date, created_at, is_encrypted, group_id, installment_current, installment_total`

// Placeholder renders the n-th (1-based) bind parameter of a dialect.
type Placeholder func(n int) string

// Dollar renders PostgreSQL placeholders.
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Question renders SQLite placeholders.
func Question(int) string { return "?" }

// Where translates q into a WHERE/ORDER BY tail and its arguments.
func Where(q store.Query, ph Placeholder) (string, []any) {
	column := "entry_date"
	if q.Field() == store.OrderByDueDate {
		column = "due_date"
	}

	args := []any{q.OwnerID}
	conds := []string{"owner_id = " + ph(1)}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, ph(len(args))))
	}
	if q.GroupID != "" {
		add("group_id = %s", q.GroupID)
	}
	if !q.From.IsZero() {
		add(column+" >= %s", q.From)
	}
	if !q.To.IsZero() {
		add(column+" <= %s", q.To)
	}

	return " WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY " + column + ", created_at, id", args
}

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// ScanRecord reads one row selected with Columns.
func ScanRecord(s RowScanner) (*models.Record, error) {
	var r models.Record
	err := s.Scan(
		&r.ID, &r.OwnerID, &r.Description, &r.Amount, &r.Type, &r.Category, &r.PaymentMethod, &r.Status,
		&r.Date, &r.DueDate, &r.CreatedAt, &r.IsEncrypted, &r.GroupID, &r.InstallmentCurrent, &r.InstallmentTotal,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordArgs returns the values of r in Columns order.
func RecordArgs(r *models.Record) []any {
	return []any{
		r.ID, r.OwnerID, r.Description, r.Amount, string(r.Type), r.Category, r.PaymentMethod, string(r.Status),
		r.Date, r.DueDate, r.CreatedAt, r.IsEncrypted, r.GroupID, r.InstallmentCurrent, r.InstallmentTotal,
	}
}
