package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophledger/internal/common"
	"github.com/dmitrijs2005/gophledger/internal/cryptox"
	"github.com/dmitrijs2005/gophledger/internal/datex"
	"github.com/dmitrijs2005/gophledger/internal/ledger/codec"
	"github.com/dmitrijs2005/gophledger/internal/ledger/recurrence"
	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "owner-1"

// flakyStore fails commits on demand.
type flakyStore struct {
	*store.Memory
	fail    bool
	commits int
}

func (f *flakyStore) Commit(ctx context.Context, ownerID string, b *store.Batch) error {
	if f.fail {
		return errors.New("store unavailable")
	}
	f.commits++
	return f.Memory.Commit(ctx, ownerID, b)
}

type fixture struct {
	store *flakyStore
	codec *codec.Codec
	co    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := &flakyStore{Memory: store.NewMemory(logging.Nop())}
	c := codec.New(cryptox.NewEnvelope(cryptox.StdProvider{}), logging.Nop())
	return &fixture{store: s, codec: c, co: New(s, c, recurrence.New(), logging.Nop(), WithEncodeLimit(2))}
}

func (f *fixture) decoded(t *testing.T, q store.Query) []models.Entry {
	t.Helper()
	rs, err := f.store.List(context.Background(), q)
	require.NoError(t, err)
	out := make([]models.Entry, 0, len(rs))
	for _, r := range rs {
		out = append(out, f.codec.FromStorage(context.Background(), r))
	}
	return out
}

func (f *fixture) entry(t *testing.T, id string) models.Entry {
	t.Helper()
	r, err := f.store.Get(context.Background(), owner, id)
	require.NoError(t, err)
	return f.codec.FromStorage(context.Background(), r)
}

func purchase(n int) models.TransactionRequest {
	return models.TransactionRequest{
		Description:   "Phone",
		Total:         decimal.RequireFromString("300.00"),
		Kind:          models.KindExpense,
		Category:      "electronics",
		PaymentMethod: models.PaymentCreditCard,
		PurchaseDate:  datex.MustParse("2025-01-31"),
		DueDate:       datex.MustParse("2025-02-10"),
		IsInstallment: n > 1,
		Installments:  n,
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateTransaction_CommitsOneEncryptedBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entries, err := f.co.CreateTransaction(ctx, owner, purchase(3))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, f.store.commits)

	rs, err := f.store.List(ctx, store.Query{OwnerID: owner, OrderBy: store.OrderByDueDate})
	require.NoError(t, err)
	require.Len(t, rs, 3)
	for i, r := range rs {
		assert.True(t, r.IsEncrypted)
		assert.True(t, cryptox.IsEnvelope(r.Description))
		assert.NotContains(t, r.Description, "Phone")
		assert.Equal(t, i+1, r.InstallmentCurrent)
	}

	got := f.decoded(t, store.Query{OwnerID: owner, OrderBy: store.OrderByDueDate})
	assert.Equal(t, "Phone (2/3)", got[1].Description)
	assert.True(t, got[1].Amount.Equal(decimal.RequireFromString("100")))
	assert.True(t, entries[0].Encrypted)
}

func TestCreateTransaction_FailedCommitWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.store.fail = true

	_, err := f.co.CreateTransaction(context.Background(), owner, purchase(4))
	require.Error(t, err)
	assert.Empty(t, f.decoded(t, store.Query{OwnerID: owner}))
}

func TestCreateTransaction_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	req := purchase(2)
	req.Total = decimal.Zero
	_, err := f.co.CreateTransaction(context.Background(), owner, req)
	require.ErrorIs(t, err, recurrence.ErrInvalidRequest)
	assert.Zero(t, f.store.commits)
}

func TestDeleteEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("cascade removes whole group", func(t *testing.T) {
		f := newFixture(t)
		entries, err := f.co.CreateTransaction(ctx, owner, purchase(4))
		require.NoError(t, err)
		single, err := f.co.CreateTransaction(ctx, owner, purchase(1))
		require.NoError(t, err)

		n, err := f.co.DeleteEntry(ctx, owner, entries[2].ID, true)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Empty(t, f.decoded(t, store.Query{OwnerID: owner, GroupID: entries[0].GroupID}))
		assert.Len(t, f.decoded(t, store.Query{OwnerID: owner}), 1)
		assert.Equal(t, single[0].ID, f.decoded(t, store.Query{OwnerID: owner})[0].ID)
	})

	t.Run("without cascade removes only target", func(t *testing.T) {
		f := newFixture(t)
		entries, err := f.co.CreateTransaction(ctx, owner, purchase(3))
		require.NoError(t, err)

		n, err := f.co.DeleteEntry(ctx, owner, entries[1].ID, false)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		left := f.decoded(t, store.Query{OwnerID: owner, GroupID: entries[0].GroupID, OrderBy: store.OrderByDueDate})
		require.Len(t, left, 2)
		assert.Equal(t, entries[0].ID, left[0].ID)
		assert.Equal(t, entries[2].ID, left[1].ID)
	})

	t.Run("missing entry is a no-op", func(t *testing.T) {
		f := newFixture(t)
		n, err := f.co.DeleteEntry(ctx, owner, "nope", true)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, f.store.commits)
	})

	t.Run("failed commit keeps group", func(t *testing.T) {
		f := newFixture(t)
		entries, err := f.co.CreateTransaction(ctx, owner, purchase(3))
		require.NoError(t, err)
		f.store.fail = true

		_, err = f.co.DeleteEntry(ctx, owner, entries[0].ID, true)
		require.Error(t, err)
		assert.Len(t, f.decoded(t, store.Query{OwnerID: owner}), 3)
	})
}

func TestCancelFutureInstallments_Boundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entries, err := f.co.CreateTransaction(ctx, owner, purchase(5))
	require.NoError(t, err)
	group := entries[0].GroupID

	// due dates: 02-10, 03-10, 04-10, 05-10, 06-10
	n, err := f.co.CancelFutureInstallments(ctx, owner, group, datex.MustParse("2025-04-10"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left := f.decoded(t, store.Query{OwnerID: owner, GroupID: group, OrderBy: store.OrderByDueDate})
	require.Len(t, left, 3)
	assert.Equal(t, "2025-04-10", left[2].DueDate.String(), "entry due on the cut-off survives")

	n, err = f.co.CancelFutureInstallments(ctx, owner, group, datex.MustParse("2025-04-10"))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.co.CancelFutureInstallments(ctx, owner, "", datex.MustParse("2025-04-10"))
	require.ErrorIs(t, err, common.ErrorInvalidArgument)
}

func TestUpdateEntry_GroupIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entries, err := f.co.CreateTransaction(ctx, owner, purchase(3))
	require.NoError(t, err)

	// pay the third installment first so status differs across members
	_, err = f.co.ToggleStatus(ctx, owner, entries[2].ID, models.StatusPending)
	require.NoError(t, err)
	before := f.entry(t, entries[2].ID)

	newDate := datex.MustParse("2025-01-20")
	newDue := datex.MustParse("2025-02-15")
	err = f.co.UpdateEntry(ctx, owner, entries[0].ID, models.Patch{
		Description:   ptr("Smartphone"),
		Amount:        ptr(decimal.RequireFromString("110.00")),
		Category:      ptr("gadgets"),
		PaymentMethod: ptr(models.PaymentInvoice),
		Date:          &newDate,
		DueDate:       &newDue,
		Status:        ptr(models.StatusPaid),
	}, true)
	require.NoError(t, err)

	target := f.entry(t, entries[0].ID)
	assert.Equal(t, "Smartphone (1/3)", target.Description)
	assert.Equal(t, newDate, target.Date)
	assert.Equal(t, newDue, target.DueDate)
	assert.Equal(t, models.StatusPaid, target.Status)

	second := f.entry(t, entries[1].ID)
	assert.Equal(t, "Smartphone (2/3)", second.Description)
	assert.True(t, second.Amount.Equal(decimal.RequireFromString("110")))
	assert.Equal(t, "gadgets", second.Category)
	assert.Equal(t, models.PaymentInvoice, second.PaymentMethod)
	assert.Equal(t, entries[1].Date, second.Date)
	assert.Equal(t, entries[1].DueDate, second.DueDate)
	assert.Equal(t, models.StatusPending, second.Status)

	third := f.entry(t, entries[2].ID)
	assert.Equal(t, "Smartphone (3/3)", third.Description)
	assert.Equal(t, before.Date, third.Date)
	assert.Equal(t, before.DueDate, third.DueDate)
	assert.Equal(t, models.StatusPaid, third.Status)
}

func TestUpdateEntry_DateOnlyGroupPatchTouchesOnlyTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entries, err := f.co.CreateTransaction(ctx, owner, purchase(2))
	require.NoError(t, err)
	other, err := f.store.Get(ctx, owner, entries[1].ID)
	require.NoError(t, err)

	x := datex.MustParse("2025-03-01")
	require.NoError(t, f.co.UpdateEntry(ctx, owner, entries[0].ID, models.Patch{Date: &x}, true))

	assert.Equal(t, x, f.entry(t, entries[0].ID).Date)
	after, err := f.store.Get(ctx, owner, entries[1].ID)
	require.NoError(t, err)
	assert.Equal(t, other, after, "untouched member is byte-identical")
}

func TestUpdateEntry_SingleKeepsCiphertextOfUntouchedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entries, err := f.co.CreateTransaction(ctx, owner, purchase(1))
	require.NoError(t, err)
	before, err := f.store.Get(ctx, owner, entries[0].ID)
	require.NoError(t, err)

	require.NoError(t, f.co.UpdateEntry(ctx, owner, entries[0].ID, models.Patch{Amount: ptr(decimal.RequireFromString("12.34"))}, false))

	after, err := f.store.Get(ctx, owner, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, before.Description, after.Description)
	assert.NotEqual(t, before.Amount, after.Amount)
	assert.True(t, f.entry(t, entries[0].ID).Amount.Equal(decimal.RequireFromString("12.34")))
}

func TestUpdateEntry_ExpenseKeepsDistinctDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entries, err := f.co.CreateTransaction(ctx, owner, purchase(1))
	require.NoError(t, err)
	id := entries[0].ID

	due := datex.MustParse("2025-03-05")
	require.NoError(t, f.co.UpdateEntry(ctx, owner, id, models.Patch{DueDate: &due}, false))
	e := f.entry(t, id)
	assert.Equal(t, "2025-01-31", e.Date.String())
	assert.Equal(t, due, e.DueDate)

	require.NoError(t, f.co.UpdateEntry(ctx, owner, id, models.Patch{Description: ptr("Phone case")}, false))
	e = f.entry(t, id)
	assert.NotEqual(t, e.Date, e.DueDate)
	assert.Equal(t, "Phone case", e.Description)
}

func TestUpdateEntry_IncomeKeepsSingleDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := purchase(1)
	req.Kind = models.KindIncome
	req.PaymentMethod = models.PaymentBankTransfer
	entries, err := f.co.CreateTransaction(ctx, owner, req)
	require.NoError(t, err)
	id := entries[0].ID
	assert.Equal(t, entries[0].Date, entries[0].DueDate)

	due := datex.MustParse("2025-03-05")
	require.NoError(t, f.co.UpdateEntry(ctx, owner, id, models.Patch{DueDate: &due}, false))
	e := f.entry(t, id)
	assert.Equal(t, due, e.Date)
	assert.Equal(t, due, e.DueDate)

	d := datex.MustParse("2025-04-01")
	require.NoError(t, f.co.UpdateEntry(ctx, owner, id, models.Patch{Date: &d}, false))
	e = f.entry(t, id)
	assert.Equal(t, d, e.Date)
	assert.Equal(t, d, e.DueDate)
	require.NoError(t, e.Validate())
}

func TestUpdateEntry_GroupFailureIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entries, err := f.co.CreateTransaction(ctx, owner, purchase(3))
	require.NoError(t, err)
	before := f.decoded(t, store.Query{OwnerID: owner, OrderBy: store.OrderByDueDate})

	f.store.fail = true
	err = f.co.UpdateEntry(ctx, owner, entries[1].ID, models.Patch{Category: ptr("other")}, true)
	require.Error(t, err)

	f.store.fail = false
	assert.Equal(t, before, f.decoded(t, store.Query{OwnerID: owner, OrderBy: store.OrderByDueDate}))
}

func TestUpdateEntry_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.co.UpdateEntry(ctx, owner, "missing", models.Patch{Category: ptr("x")}, false)
	require.ErrorIs(t, err, common.ErrorNotFound)

	err = f.co.UpdateEntry(ctx, owner, "any", models.Patch{Status: ptr(models.Status("late"))}, false)
	require.ErrorIs(t, err, common.ErrorInvalidArgument)

	err = f.co.UpdateEntry(ctx, owner, "any", models.Patch{Amount: ptr(decimal.NewFromInt(-1))}, false)
	require.ErrorIs(t, err, common.ErrorInvalidArgument)

	require.NoError(t, f.co.UpdateEntry(ctx, owner, "any", models.Patch{}, true))
}

func TestUpdateEntry_PlaintextRecordGetsEncrypted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Commit(ctx, owner, &store.Batch{Puts: []*models.Record{{
		ID: "legacy", OwnerID: owner, Description: "Rent", Amount: "900",
		Type: models.KindExpense, Status: models.StatusPending, PaymentMethod: "bank_transfer",
		Date: datex.MustParse("2025-01-01"), DueDate: datex.MustParse("2025-01-05"),
	}}}))

	require.NoError(t, f.co.UpdateEntry(ctx, owner, "legacy", models.Patch{Description: ptr("Rent Jan")}, false))

	r, err := f.store.Get(ctx, owner, "legacy")
	require.NoError(t, err)
	assert.True(t, r.IsEncrypted)
	e := f.entry(t, "legacy")
	assert.Equal(t, "Rent Jan", e.Description)
	assert.True(t, e.Amount.Equal(decimal.NewFromInt(900)))
}

func TestToggleStatus_NeverCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entries, err := f.co.CreateTransaction(ctx, owner, purchase(3))
	require.NoError(t, err)

	next, err := f.co.ToggleStatus(ctx, owner, entries[1].ID, models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, next)

	assert.Equal(t, models.StatusPending, f.entry(t, entries[0].ID).Status)
	assert.Equal(t, models.StatusPaid, f.entry(t, entries[1].ID).Status)
	assert.Equal(t, models.StatusPending, f.entry(t, entries[2].ID).Status)

	next, err = f.co.ToggleStatus(ctx, owner, entries[1].ID, next)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, next)

	_, err = f.co.ToggleStatus(ctx, owner, entries[1].ID, "late")
	require.ErrorIs(t, err, common.ErrorInvalidArgument)
}
