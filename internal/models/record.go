// Package models defines the ledger entry in its logical (decrypted) form and
// in its persisted form, plus the request types that create and edit entries.
package models

import (
	"time"

	"github.com/dmitrijs2005/gophledger/internal/datex"
)

// Record is a ledger entry as persisted by a store. Description and Amount
// hold envelope ciphertext when IsEncrypted is set, plaintext otherwise.
// Stores treat every field as opaque.
type Record struct {
	ID                 string     `json:"id"`
	OwnerID            string     `json:"ownerId"`
	Description        string     `json:"description"`
	Amount             string     `json:"amount"`
	Type               Kind       `json:"type"`
	Category           string     `json:"category"`
	PaymentMethod      string     `json:"paymentMethod"`
	Status             Status     `json:"status"`
	Date               datex.Date `json:"date"`
	DueDate            datex.Date `json:"dueDate"`
	CreatedAt          time.Time  `json:"createdAt"`
	IsEncrypted        bool       `json:"isEncrypted"`
	GroupID            string     `json:"groupId,omitempty"`
	InstallmentCurrent int        `json:"installmentCurrent,omitempty"`
	InstallmentTotal   int        `json:"installmentTotal,omitempty"`
}

// Clone returns a shallow copy of r; all fields are values.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// InGroup reports whether the record belongs to an installment group.
func (r *Record) InGroup() bool { return r.GroupID != "" }
