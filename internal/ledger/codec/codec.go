// Package codec maps ledger entries to and from their stored form, sealing
// the sensitive fields (description, amount) with the owner's field key.
package codec

import (
	"context"
	"sync/atomic"

	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/shopspring/decimal"
)

// ProtectedPlaceholder replaces a description that could not be decrypted.
const ProtectedPlaceholder = "[protected data: migration required]"

// protectedThreshold is the stored length above which an unchanged
// description is taken as a failed decryption rather than short plaintext.
const protectedThreshold = 20

// Cipher is the part of cryptox.Envelope the codec needs.
type Cipher interface {
	EncryptField(plaintext, ownerID string) (string, error)
	DecryptField(envelope, ownerID string) string
}

// Codec converts between models.Entry and models.Record.
type Codec struct {
	cipher    Cipher
	logger    logging.Logger
	fallbacks atomic.Int64
}

func New(c Cipher, l logging.Logger) *Codec {
	return &Codec{cipher: c, logger: l.With("module", "codec")}
}

// ToStorage seals description and amount and marks the record encrypted.
//
// If sealing fails the record is stored in plaintext with IsEncrypted unset.
// Every such fallback is logged and counted (see PlaintextFallbacks); the
// migration sweep encrypts these records later.
func (c *Codec) ToStorage(ctx context.Context, e *models.Entry) *models.Record {
	r := &models.Record{
		ID:                 e.ID,
		OwnerID:            e.OwnerID,
		Type:               e.Kind,
		Category:           e.Category,
		PaymentMethod:      string(e.PaymentMethod),
		Status:             e.Status,
		Date:               e.Date,
		DueDate:            e.DueDate,
		CreatedAt:          e.CreatedAt,
		GroupID:            e.GroupID,
		InstallmentCurrent: e.InstallmentIndex,
		InstallmentTotal:   e.InstallmentTotal,
	}

	desc, err := c.SealField(e.OwnerID, e.Description)
	var amount string
	if err == nil {
		amount, err = c.SealField(e.OwnerID, e.Amount.String())
	}
	if err != nil {
		c.fallbacks.Add(1)
		c.logger.Warn(ctx, "encryption unavailable, storing plaintext", "entry", e.ID, "error", err)
		r.Description = e.Description
		r.Amount = e.Amount.String()
		r.IsEncrypted = false
		return r
	}

	r.Description = desc
	r.Amount = amount
	r.IsEncrypted = true
	return r
}

// SealField encrypts one sensitive value for ownerID. Unlike ToStorage it
// has no plaintext fallback.
func (c *Codec) SealField(ownerID, value string) (string, error) {
	return c.cipher.EncryptField(value, ownerID)
}

// FromStorage opens a record. It never fails: an unreadable description
// becomes ProtectedPlaceholder with Protected set, and an unparsable amount
// becomes zero.
func (c *Codec) FromStorage(ctx context.Context, r *models.Record) models.Entry {
	e := models.Entry{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		Description:      r.Description,
		Kind:             r.Type,
		Category:         r.Category,
		PaymentMethod:    models.PaymentMethod(r.PaymentMethod),
		Status:           r.Status,
		Date:             r.Date,
		DueDate:          r.DueDate,
		CreatedAt:        r.CreatedAt,
		Encrypted:        r.IsEncrypted,
		GroupID:          r.GroupID,
		InstallmentIndex: r.InstallmentCurrent,
		InstallmentTotal: r.InstallmentTotal,
	}

	amount := r.Amount
	if r.IsEncrypted {
		e.Description = c.cipher.DecryptField(r.Description, r.OwnerID)
		if e.Description == r.Description && len(r.Description) > protectedThreshold {
			e.Description = ProtectedPlaceholder
			e.Protected = true
		}
		amount = c.cipher.DecryptField(r.Amount, r.OwnerID)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		c.logger.Debug(ctx, "amount not readable, using zero", "entry", r.ID)
		d = decimal.Zero
	}
	e.Amount = d

	return e
}

// PlaintextFallbacks returns how many records were stored unencrypted
// because sealing failed.
func (c *Codec) PlaintextFallbacks() int64 {
	return c.fallbacks.Load()
}
