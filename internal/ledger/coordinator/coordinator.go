// Package coordinator creates, edits and deletes ledger entries and whole
// installment groups. Every operation is submitted to the store as one
// atomic batch.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophledger/internal/common"
	"github.com/dmitrijs2005/gophledger/internal/datex"
	"github.com/dmitrijs2005/gophledger/internal/ledger/codec"
	"github.com/dmitrijs2005/gophledger/internal/ledger/recurrence"
	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
	"golang.org/x/sync/errgroup"
)

const defaultEncodeLimit = 8

type Coordinator struct {
	store       store.Store
	codec       *codec.Codec
	generator   *recurrence.Generator
	logger      logging.Logger
	encodeLimit int
}

type Option func(*Coordinator)

// WithEncodeLimit bounds concurrent encryption when creating transactions.
func WithEncodeLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.encodeLimit = n
		}
	}
}

func New(s store.Store, c *codec.Codec, g *recurrence.Generator, l logging.Logger, opts ...Option) *Coordinator {
	co := &Coordinator{
		store:       s,
		codec:       c,
		generator:   g,
		logger:      l.With("module", "coordinator"),
		encodeLimit: defaultEncodeLimit,
	}
	for _, o := range opts {
		o(co)
	}
	return co
}

// CreateTransaction expands req, seals every draft and commits them
// together. Nothing is written unless all drafts are ready.
func (c *Coordinator) CreateTransaction(ctx context.Context, ownerID string, req models.TransactionRequest) ([]models.Entry, error) {
	drafts, err := c.generator.Generate(ownerID, req)
	if err != nil {
		return nil, err
	}

	records := make([]*models.Record, len(drafts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.encodeLimit)
	for i := range drafts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = c.codec.ToStorage(gctx, &drafts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := c.store.Commit(ctx, ownerID, &store.Batch{Puts: records}); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	for i := range drafts {
		drafts[i].Encrypted = records[i].IsEncrypted
	}
	c.logger.Info(ctx, "transaction created", "owner", ownerID, "entries", len(drafts), "group", drafts[0].GroupID)
	return drafts, nil
}

// DeleteEntry removes id, or its whole group when cascadeGroup is set and
// the entry belongs to one. A missing entry is not an error. It returns the
// number of entries removed.
func (c *Coordinator) DeleteEntry(ctx context.Context, ownerID, id string, cascadeGroup bool) (int, error) {
	target, err := c.store.Get(ctx, ownerID, id)
	if errors.Is(err, common.ErrorNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	b := &store.Batch{}
	if cascadeGroup && target.InGroup() {
		members, err := c.members(ctx, ownerID, target.GroupID)
		if err != nil {
			return 0, err
		}
		for _, m := range members {
			if m.ID != target.ID {
				b.Delete(m.ID)
			}
		}
	}
	b.Delete(target.ID)

	if err := c.store.Commit(ctx, ownerID, b); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	c.logger.Info(ctx, "entries deleted", "owner", ownerID, "count", b.Len(), "cascade", cascadeGroup)
	return b.Len(), nil
}

// CancelFutureInstallments removes every member of groupID due strictly
// after keepUntil. Members due on or before keepUntil stay.
func (c *Coordinator) CancelFutureInstallments(ctx context.Context, ownerID, groupID string, keepUntil datex.Date) (int, error) {
	if groupID == "" || keepUntil.IsZero() {
		return 0, fmt.Errorf("group id and cut-off date required: %w", common.ErrorInvalidArgument)
	}

	members, err := c.members(ctx, ownerID, groupID)
	if err != nil {
		return 0, err
	}

	b := &store.Batch{}
	for _, m := range members {
		if m.DueDate.After(keepUntil) {
			b.Delete(m.ID)
		}
	}
	if b.Len() == 0 {
		return 0, nil
	}

	if err := c.store.Commit(ctx, ownerID, b); err != nil {
		return 0, fmt.Errorf("commit cancel: %w", err)
	}
	c.logger.Info(ctx, "future installments cancelled", "owner", ownerID, "group", groupID, "count", b.Len())
	return b.Len(), nil
}

// UpdateEntry applies patch to id. With applyToGroup the other members of
// the entry's group receive only category, payment method, amount and the
// description (with their own installment suffix); their date, due date and
// status are never touched.
func (c *Coordinator) UpdateEntry(ctx context.Context, ownerID, id string, patch models.Patch, applyToGroup bool) error {
	if err := validatePatch(patch); err != nil {
		return err
	}
	if patch.Empty() {
		return nil
	}

	target, err := c.store.Get(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("load entry %s: %w", id, err)
	}

	if !applyToGroup || !target.InGroup() {
		updated, err := c.patchRecord(ctx, target, patch)
		if err != nil {
			return err
		}
		if err := c.store.Commit(ctx, ownerID, &store.Batch{Puts: []*models.Record{updated}}); err != nil {
			return fmt.Errorf("commit update: %w", err)
		}
		return nil
	}

	members, err := c.members(ctx, ownerID, target.GroupID)
	if err != nil {
		return err
	}

	shared := models.Patch{
		Category:      patch.Category,
		PaymentMethod: patch.PaymentMethod,
		Amount:        patch.Amount,
	}

	b := &store.Batch{}
	for _, m := range members {
		p := shared
		if m.ID == target.ID {
			p = patch
		}
		if patch.Description != nil {
			d := models.InstallmentDescription(models.BaseDescription(*patch.Description), m.InstallmentCurrent, m.InstallmentTotal)
			p.Description = &d
		}
		if p.Empty() {
			continue
		}
		updated, err := c.patchRecord(ctx, m, p)
		if err != nil {
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
		b.Put(updated)
	}

	if err := c.store.Commit(ctx, ownerID, b); err != nil {
		return fmt.Errorf("commit group update: %w", err)
	}
	c.logger.Info(ctx, "group updated", "owner", ownerID, "group", target.GroupID, "entries", b.Len())
	return nil
}

// ToggleStatus flips the status of one entry from current and returns the
// new status. Other members of its group are not affected.
func (c *Coordinator) ToggleStatus(ctx context.Context, ownerID, id string, current models.Status) (models.Status, error) {
	if !current.Valid() {
		return "", fmt.Errorf("unknown status %q: %w", current, common.ErrorInvalidArgument)
	}
	next := current.Toggle()
	if err := c.UpdateEntry(ctx, ownerID, id, models.Patch{Status: &next}, false); err != nil {
		return "", err
	}
	return next, nil
}

func (c *Coordinator) members(ctx context.Context, ownerID, groupID string) ([]*models.Record, error) {
	members, err := c.store.List(ctx, store.Query{OwnerID: ownerID, GroupID: groupID, OrderBy: store.OrderByDueDate})
	if err != nil {
		return nil, fmt.Errorf("load group %s: %w", groupID, err)
	}
	return members, nil
}

func validatePatch(p models.Patch) error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", *p.Status, common.ErrorInvalidArgument)
	}
	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		return fmt.Errorf("unknown payment method %q: %w", *p.PaymentMethod, common.ErrorInvalidArgument)
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return fmt.Errorf("negative amount: %w", common.ErrorInvalidArgument)
	}
	if (p.Date != nil && p.Date.IsZero()) || (p.DueDate != nil && p.DueDate.IsZero()) {
		return fmt.Errorf("empty date: %w", common.ErrorInvalidArgument)
	}
	return nil
}

// patchRecord returns a copy of rec with p applied. Sealed fields that p
// does not change keep their stored ciphertext.
func (c *Coordinator) patchRecord(ctx context.Context, rec *models.Record, p models.Patch) (*models.Record, error) {
	out := rec.Clone()

	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.PaymentMethod != nil {
		out.PaymentMethod = string(*p.PaymentMethod)
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.DueDate != nil {
		out.DueDate = *p.DueDate
	}
	if out.Type == models.KindIncome {
		// income has a single credit date
		switch {
		case p.DueDate != nil:
			out.Date = out.DueDate
		case p.Date != nil:
			out.DueDate = out.Date
		}
	}

	if !p.TouchesSensitive() {
		return out, nil
	}

	if !rec.IsEncrypted {
		e := c.codec.FromStorage(ctx, out)
		if p.Description != nil {
			e.Description = *p.Description
		}
		if p.Amount != nil {
			e.Amount = *p.Amount
		}
		sealed := c.codec.ToStorage(ctx, &e)
		out.Description, out.Amount, out.IsEncrypted = sealed.Description, sealed.Amount, sealed.IsEncrypted
		return out, nil
	}

	if p.Description != nil {
		s, err := c.codec.SealField(rec.OwnerID, *p.Description)
		if err != nil {
			return nil, fmt.Errorf("seal description: %w", err)
		}
		out.Description = s
	}
	if p.Amount != nil {
		s, err := c.codec.SealField(rec.OwnerID, p.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("seal amount: %w", err)
		}
		out.Amount = s
	}
	return out, nil
}
