package models

import (
	"github.com/dmitrijs2005/gophledger/internal/datex"
	"github.com/shopspring/decimal"
)

// TransactionRequest describes one logical transaction before it is
// expanded into installments.
type TransactionRequest struct {
	Description   string
	Total         decimal.Decimal
	Kind          Kind
	Category      string
	PaymentMethod PaymentMethod
	// PurchaseDate is the competency date of every generated entry.
	PurchaseDate datex.Date
	// DueDate is the settlement date of the first entry; later ones advance
	// month by month.
	DueDate       datex.Date
	IsInstallment bool
	Installments  int
}

// Patch is a partial edit of an entry. Nil fields are left unchanged.
type Patch struct {
	Description   *string
	Amount        *decimal.Decimal
	Category      *string
	PaymentMethod *PaymentMethod
	Date          *datex.Date
	DueDate       *datex.Date
	Status        *Status
}

// TouchesSensitive reports whether the patch changes an encrypted field.
func (p Patch) TouchesSensitive() bool {
	return p.Description != nil || p.Amount != nil
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}
