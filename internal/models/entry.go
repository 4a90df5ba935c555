package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/gophledger/internal/datex"
	"github.com/shopspring/decimal"
)

// Kind separates money in from money out.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindIncome || k == KindExpense }

// Status is the per-entry settlement state.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s == StatusPaid || s == StatusPending }

// Toggle flips paid and pending.
func (s Status) Toggle() Status {
	if s == StatusPaid {
		return StatusPending
	}
	return StatusPaid
}

// PaymentMethod is how value moves.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentDebitCard    PaymentMethod = "debit_card"
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentInvoice      PaymentMethod = "invoice"
)

var paymentMethods = map[PaymentMethod]struct{}{
	PaymentCash: {}, PaymentDebitCard: {}, PaymentCreditCard: {},
	PaymentBankTransfer: {}, PaymentInvoice: {},
}

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethods[m]
	return ok
}

// HasDueDate reports whether the method settles on a date other than the
// purchase date (card statements, invoices).
func (m PaymentMethod) HasDueDate() bool {
	return m == PaymentCreditCard || m == PaymentInvoice
}

// Entry is a single dated financial obligation or receipt, decrypted.
type Entry struct {
	ID            string
	OwnerID       string
	Description   string
	Amount        decimal.Decimal
	Kind          Kind
	Category      string
	PaymentMethod PaymentMethod
	Status        Status
	// Date is the competency date: when the obligation originated.
	Date datex.Date
	// DueDate is when value actually moves.
	DueDate          datex.Date
	CreatedAt        time.Time
	Encrypted        bool
	GroupID          string
	InstallmentIndex int
	InstallmentTotal int
	// Protected is set when the stored description could not be decrypted.
	Protected bool
}

// Validate checks the structural invariants of an entry.
func (e *Entry) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("unknown status %q", e.Status)
	}
	if e.GroupID != "" {
		if e.InstallmentTotal < 2 || e.InstallmentIndex < 1 || e.InstallmentIndex > e.InstallmentTotal {
			return fmt.Errorf("installment %d/%d out of range", e.InstallmentIndex, e.InstallmentTotal)
		}
	} else if e.InstallmentIndex != 0 || e.InstallmentTotal != 0 {
		return fmt.Errorf("installment numbers without group")
	}
	if e.Kind == KindIncome && e.Date != e.DueDate {
		return fmt.Errorf("income date %s differs from due date %s", e.Date, e.DueDate)
	}
	return nil
}

var installmentSuffix = regexp.MustCompile(`\s\(\d+/\d+\)$`)

// InstallmentDescription appends " (i/n)" to base when n > 1.
func InstallmentDescription(base string, i, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s (%d/%d)", base, i, n)
}

// BaseDescription strips a trailing " (i/n)" installment suffix.
func BaseDescription(s string) string {
	return installmentSuffix.ReplaceAllString(s, "")
}
