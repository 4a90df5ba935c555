package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/gophledger/internal/common"
	"github.com/dmitrijs2005/gophledger/internal/datex"
	"github.com/dmitrijs2005/gophledger/internal/models"
	"github.com/dmitrijs2005/gophledger/internal/store"
)

func (a *App) Login(ctx context.Context) error {
	secret, err := GetSecret(a.out, "Owner id")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	owner := strings.TrimSpace(string(secret))
	if owner == "" {
		return fmt.Errorf("owner id is required: %w", common.ErrorInvalidArgument)
	}

	fp, err := a.envelope.Fingerprint(owner)
	if err != nil {
		return err
	}

	if a.ownerID != "" && a.ownerID != owner {
		a.envelope.Forget(a.ownerID)
	}
	a.ownerID = owner
	fmt.Fprintf(a.out, "Logged in, key fingerprint %s\n", fp)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.envelope.Forget(a.ownerID)
	a.ownerID = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Add(ctx context.Context) error {
	desc, err := GetSimpleText(a.reader, "Description", a.out)
	if err != nil {
		return err
	}

	total, err := GetAmount(a.reader, "Total amount", a.out)
	if err != nil {
		return err
	}

	kind, err := GetSimpleText(a.reader, "Type (income|expense) [expense]", a.out)
	if err != nil {
		return err
	}
	if kind == "" {
		kind = string(models.KindExpense)
	}

	category, err := GetSimpleText(a.reader, "Category", a.out)
	if err != nil {
		return err
	}

	method, err := GetSimpleText(a.reader, "Payment method (cash|debit_card|credit_card|bank_transfer|invoice) [cash]", a.out)
	if err != nil {
		return err
	}
	if method == "" {
		method = string(models.PaymentCash)
	}
	pm := models.PaymentMethod(method)

	date, err := GetDate(a.reader, "Date", a.out, datex.Today())
	if err != nil {
		return err
	}

	due := date
	if pm.HasDueDate() {
		if due, err = GetDate(a.reader, "First due date", a.out, date); err != nil {
			return err
		}
	}

	n, err := GetInt(a.reader, "Installments", a.out, 1)
	if err != nil {
		return err
	}

	entries, err := a.coordinator.CreateTransaction(ctx, a.ownerID, models.TransactionRequest{
		Description:   desc,
		Total:         total,
		Kind:          models.Kind(kind),
		Category:      category,
		PaymentMethod: pm,
		PurchaseDate:  date,
		DueDate:       due,
		IsInstallment: n > 1,
		Installments:  n,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Created %d entries\n", len(entries))
	if len(entries) > 0 && entries[0].GroupID != "" {
		fmt.Fprintf(a.out, "Group %s\n", entries[0].GroupID)
	}
	return nil
}

// parseQuery reads "[due] [group=<id>] [from] [to]".
func (a *App) parseQuery(args []string) (store.Query, error) {
	q := store.Query{OwnerID: a.ownerID, OrderBy: store.OrderByDate}
	var dates []datex.Date

	for _, arg := range args {
		switch {
		case arg == "due":
			q.OrderBy = store.OrderByDueDate
		case strings.HasPrefix(arg, "group="):
			q.GroupID = strings.TrimPrefix(arg, "group=")
		default:
			d, err := datex.Parse(arg)
			if err != nil {
				return store.Query{}, err
			}
			dates = append(dates, d)
		}
	}

	switch len(dates) {
	case 0:
	case 1:
		q.From = dates[0]
	case 2:
		q.From, q.To = dates[0], dates[1]
	default:
		return store.Query{}, fmt.Errorf("at most two dates expected: %w", common.ErrorInvalidArgument)
	}

	return q, nil
}

func (a *App) List(ctx context.Context, args []string) error {
	q, err := a.parseQuery(args)
	if err != nil {
		return err
	}

	rs, err := a.store.List(ctx, q)
	if err != nil {
		return err
	}

	entries, err := a.pipeline.Decode(ctx, rs)
	if err != nil {
		return err
	}

	a.printEntries(entries)
	return nil
}

func (a *App) printEntries(entries []models.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No entries")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tDUE\tTYPE\tAMOUNT\tSTATUS\tCATEGORY\tMETHOD\tINST\tDESCRIPTION")
	for _, e := range entries {
		desc := e.Description
		if e.Protected {
			desc += " [run migrate]"
		}
		inst := "-"
		if e.GroupID != "" {
			inst = fmt.Sprintf("%d/%d", e.InstallmentIndex, e.InstallmentTotal)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.DueDate, e.Kind, e.Amount.StringFixed(2), e.Status, e.Category, e.PaymentMethod, inst, desc)
	}
	tw.Flush()
}

func (a *App) entry(ctx context.Context, id string) (models.Entry, error) {
	r, err := a.store.Get(ctx, a.ownerID, id)
	if err != nil {
		return models.Entry{}, err
	}
	return a.codec.FromStorage(ctx, r), nil
}

func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: edit <id> [group]: %w", common.ErrorInvalidArgument)
	}
	applyToGroup := len(args) > 1 && args[1] == "group"

	e, err := a.entry(ctx, args[0])
	if err != nil {
		return err
	}

	var patch models.Patch

	desc, err := GetSimpleText(a.reader, fmt.Sprintf("Description [%s]", e.Description), a.out)
	if err != nil {
		return err
	}
	if desc != "" {
		patch.Description = &desc
	}

	amount, err := GetSimpleText(a.reader, fmt.Sprintf("Amount [%s]", e.Amount.StringFixed(2)), a.out)
	if err != nil {
		return err
	}
	if amount != "" {
		v, err := parseAmount(amount)
		if err != nil {
			return err
		}
		patch.Amount = &v
	}

	category, err := GetSimpleText(a.reader, fmt.Sprintf("Category [%s]", e.Category), a.out)
	if err != nil {
		return err
	}
	if category != "" {
		patch.Category = &category
	}

	method, err := GetSimpleText(a.reader, fmt.Sprintf("Payment method [%s]", e.PaymentMethod), a.out)
	if err != nil {
		return err
	}
	if method != "" {
		pm := models.PaymentMethod(method)
		patch.PaymentMethod = &pm
	}

	date, err := GetDate(a.reader, "Date", a.out, e.Date)
	if err != nil {
		return err
	}
	if date != e.Date {
		patch.Date = &date
	}

	due, err := GetDate(a.reader, "Due date", a.out, e.DueDate)
	if err != nil {
		return err
	}
	if due != e.DueDate {
		patch.DueDate = &due
	}

	if patch.Empty() {
		fmt.Fprintln(a.out, "Nothing to change")
		return nil
	}

	if err := a.coordinator.UpdateEntry(ctx, a.ownerID, e.ID, patch, applyToGroup); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Updated")
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: delete <id> [group]: %w", common.ErrorInvalidArgument)
	}

	n, err := a.coordinator.DeleteEntry(ctx, a.ownerID, args[0], len(args) > 1 && args[1] == "group")
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Deleted %d entries\n", n)
	return nil
}

func (a *App) Cancel(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: cancel <group id> <keep until YYYY-MM-DD>: %w", common.ErrorInvalidArgument)
	}

	keepUntil, err := datex.Parse(args[1])
	if err != nil {
		return err
	}

	n, err := a.coordinator.CancelFutureInstallments(ctx, a.ownerID, args[0], keepUntil)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Cancelled %d installments\n", n)
	return nil
}

func (a *App) Toggle(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: toggle <id>: %w", common.ErrorInvalidArgument)
	}

	e, err := a.entry(ctx, args[0])
	if err != nil {
		return err
	}

	next, err := a.coordinator.ToggleStatus(ctx, a.ownerID, e.ID, e.Status)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Status %s\n", next)
	return nil
}

func (a *App) Migrate(ctx context.Context) error {
	n, err := a.migrator.Migrate(ctx, a.ownerID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Migrated %d records\n", n)
	return nil
}

func (a *App) Fingerprint(ctx context.Context) error {
	fp, err := a.envelope.Fingerprint(a.ownerID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Key fingerprint %s\n", fp)
	return nil
}

func (a *App) LegacyKey(ctx context.Context) error {
	secret, err := GetSecret(a.out, "Legacy key (base64)")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	if err := a.legacy.Import(ctx, a.ownerID, string(secret)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Legacy key stored, run 'migrate' to re-encrypt old records")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	fmt.Fprintf(a.out, "Mode %s\n", a.Mode())
	if n := a.codec.PlaintextFallbacks(); n > 0 {
		fmt.Fprintf(a.out, "Fields stored unencrypted this session: %d\n", n)
	}
	return nil
}

// Watch prints every snapshot of the query until Enter is pressed. When the
// subscription ends on its own it says so and waits for Enter, or returns
// at once if ctx is done.
func (a *App) Watch(ctx context.Context, args []string) error {
	q, err := a.parseQuery(args)
	if err != nil {
		return err
	}

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	snapshots, err := a.pipeline.Watch(ctx, a.store, q)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Watching, press Enter to stop")

	stopped := make(chan struct{})
	go func() {
		_, _ = a.reader.ReadString('\n')
		close(stopped)
		cancel()
	}()

	for entries := range snapshots {
		fmt.Fprintf(a.out, "--- %d entries\n", len(entries))
		a.printEntries(entries)
	}

	select {
	case <-stopped:
		return nil
	default:
	}

	if parent.Err() != nil {
		fmt.Fprintln(a.out, "Watch ended")
		return nil
	}

	fmt.Fprintln(a.out, "Watch ended, the store closed the subscription. Press Enter to continue")
	select {
	case <-stopped:
	case <-parent.Done():
	}
	return nil
}
