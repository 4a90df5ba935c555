// Package recurrence expands one transaction request into the dated ledger
// entries it stands for: a single entry, or a chain of monthly installments
// sharing a group id.
package recurrence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidRequest wraps every validation failure of a request.
var ErrInvalidRequest = errors.New("invalid transaction request")

// DefaultRecurringCategories repeat the full amount on every entry instead
// of splitting it.
var DefaultRecurringCategories = []string{"subscriptions", "streaming"}

// Generator turns requests into entry drafts.
type Generator struct {
	recurring map[string]struct{}
	newID     func() string
}

type Option func(*Generator)

// WithRecurringCategories replaces the set of non-divisible categories.
func WithRecurringCategories(categories ...string) Option {
	return func(g *Generator) {
		g.recurring = make(map[string]struct{}, len(categories))
		for _, c := range categories {
			g.recurring[normalize(c)] = struct{}{}
		}
	}
}

// WithIDFunc sets the id source for entries and groups.
func WithIDFunc(f func() string) Option {
	return func(g *Generator) { g.newID = f }
}

func New(opts ...Option) *Generator {
	g := &Generator{newID: uuid.NewString}
	WithRecurringCategories(DefaultRecurringCategories...)(g)
	for _, o := range opts {
		o(g)
	}
	return g
}

func normalize(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// IsRecurring reports whether category repeats its full amount.
func (g *Generator) IsRecurring(category string) bool {
	_, ok := g.recurring[normalize(category)]
	return ok
}

// Count returns the number of entries req expands to.
func Count(req models.TransactionRequest) int {
	if !req.IsInstallment || req.Installments < 1 {
		return 1
	}
	return req.Installments
}

func validate(req models.TransactionRequest) error {
	switch {
	case strings.TrimSpace(req.Description) == "":
		return fmt.Errorf("%w: empty description", ErrInvalidRequest)
	case !req.Total.IsPositive():
		return fmt.Errorf("%w: total must be positive", ErrInvalidRequest)
	case !req.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	case !req.PaymentMethod.Valid():
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, req.PaymentMethod)
	case req.PurchaseDate.IsZero():
		return fmt.Errorf("%w: missing purchase date", ErrInvalidRequest)
	}
	return nil
}

// Generate returns the drafts for req, in installment order. Drafts are
// plaintext and carry no CreatedAt; the store assigns it.
//
// Installment i (0-based) is due i months after the base due date, clamped
// to the end of shorter months. The competency date stays at the purchase
// date for every installment, except for income where it follows the due
// date. Amounts are total/N rounded to cents, or the full total for
// recurring categories.
func (g *Generator) Generate(ownerID string, req models.TransactionRequest) ([]models.Entry, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: empty owner id", ErrInvalidRequest)
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	n := Count(req)
	baseDue := req.DueDate
	if baseDue.IsZero() {
		baseDue = req.PurchaseDate
	}

	amount := req.Total
	if !g.IsRecurring(req.Category) {
		amount = req.Total.DivRound(decimal.NewFromInt(int64(n)), 2)
	}

	var groupID string
	if n > 1 {
		groupID = g.newID()
	}

	description := strings.TrimSpace(req.Description)
	entries := make([]models.Entry, 0, n)
	for i := 0; i < n; i++ {
		due := baseDue.AddMonthsClamped(i)
		date := req.PurchaseDate
		if req.Kind == models.KindIncome {
			date = due
		}

		e := models.Entry{
			ID:            g.newID(),
			OwnerID:       ownerID,
			Description:   models.InstallmentDescription(description, i+1, n),
			Amount:        amount,
			Kind:          req.Kind,
			Category:      req.Category,
			PaymentMethod: req.PaymentMethod,
			Status:        models.StatusPending,
			Date:          date,
			DueDate:       due,
		}
		if n > 1 {
			e.GroupID = groupID
			e.InstallmentIndex = i + 1
			e.InstallmentTotal = n
		}
		entries = append(entries, e)
	}

	return entries, nil
}
