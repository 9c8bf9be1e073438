package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"tutorkasse/internal/amqp"
	"tutorkasse/internal/cache"
	"tutorkasse/internal/core"
	"tutorkasse/internal/ledger"
	"tutorkasse/internal/sheets"
)

const (
	snapshotKey     = "ledger"
	DefaultCacheTTL = 5 * time.Second
)

// Options configures optional collaborators of LedgerService.
type Options struct {
	Uploader  ReceiptUploader
	Publisher Publisher
	CacheTTL  time.Duration
}

// LedgerService orchestrates reads and writes of the fund ledger. Display
// reads go through a short-lived snapshot cache; every mutation reads fresh
// and drops the cache afterwards.
type LedgerService struct {
	store     Store
	taxonomy  core.Taxonomy
	uploader  ReceiptUploader
	publisher Publisher
	snapshots *cache.LRUCache[[]core.Entry]

	// serialises read-modify-write cycles within this process
	writeMu sync.Mutex
}

func NewLedgerService(store Store, taxonomy core.Taxonomy, opts Options) *LedgerService {
	ttl := opts.CacheTTL
	if ttl < 0 {
		ttl = 0
	}
	return &LedgerService{
		store:     store,
		taxonomy:  taxonomy,
		uploader:  opts.Uploader,
		publisher: opts.Publisher,
		snapshots: cache.NewLRUCache[[]core.Entry](1, ttl),
	}
}

// Taxonomy returns the configured roster and categories.
func (s *LedgerService) Taxonomy() core.Taxonomy { return s.taxonomy }

// Cache exposes the snapshot cache for periodic cleanup.
func (s *LedgerService) Cache() cache.Cleaner { return s.snapshots }

// Snapshot returns the ledger. fresh bypasses the cache.
func (s *LedgerService) Snapshot(ctx context.Context, fresh bool) ([]core.Entry, error) {
	if !fresh {
		if entries, ok := s.snapshots.Get(snapshotKey); ok {
			return clone(entries), nil
		}
	}
	entries, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	s.snapshots.Set(snapshotKey, clone(entries))
	return entries, nil
}

func clone(entries []core.Entry) []core.Entry {
	return append([]core.Entry(nil), entries...)
}

// Overview is everything the main page shows.
type Overview struct {
	Entries     []core.Entry
	Balance     []ledger.BalancePoint
	Chart       []ledger.BalancePoint
	Settlements []ledger.Settlement
	Totals      ledger.Totals
	// Degraded is set when the ledger could not be read and an empty one is shown.
	Degraded  bool
	LoadError string
}

// Overview reads the ledger and derives balances and open settlements. A read
// failure yields an empty, degraded overview instead of an error.
func (s *LedgerService) Overview(ctx context.Context) Overview {
	entries, err := s.Snapshot(ctx, false)
	var ov Overview
	if err != nil {
		slog.WarnContext(ctx, "Ledger unavailable, showing empty table",
			"component", "ledger", "operation", "read", "error", err)
		ov.Degraded = true
		ov.LoadError = err.Error()
		entries = nil
	}
	ov.Entries = entries
	ov.Balance = ledger.RunningBalance(entries)
	ov.Chart = ledger.ChartSeries(ov.Balance)
	ov.Settlements = ledger.OpenSettlements(entries)
	ov.Totals = ledger.Summarize(entries)
	return ov
}

// Settlement returns the settlement of one person.
func (s *LedgerService) Settlement(ctx context.Context, person string) (ledger.Settlement, error) {
	entries, err := s.Snapshot(ctx, false)
	if err != nil {
		return ledger.Settlement{}, err
	}
	return ledger.Settle(entries, person), nil
}

// Submission is a participant's new entry with an optional receipt image.
type Submission struct {
	Date        core.Date
	Person      string
	Category    string
	Cost        core.Money
	Income      core.Money
	Note        string
	ReceiptName string
	Receipt     io.Reader
}

// SubmitResult reports the stored entry. ReceiptErr is set when an attached
// receipt could not be uploaded and the entry was saved without it.
type SubmitResult struct {
	Entry      core.Entry
	RowRef     string
	ReceiptErr error
}

// Submit validates and appends a new entry with all flags cleared.
func (s *LedgerService) Submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	e := core.Entry{
		ID:       core.NewID(),
		Date:     sub.Date,
		Person:   sub.Person,
		Category: sub.Category,
		Cost:     sub.Cost,
		Income:   sub.Income,
		Note:     sub.Note,
	}.Normalize()
	if err := s.taxonomy.ValidateSubmission(e); err != nil {
		return SubmitResult{}, err
	}

	var res SubmitResult
	if sub.Receipt != nil && s.uploader != nil {
		link, err := s.uploader.Upload(ctx, sub.ReceiptName, sub.Receipt)
		if err != nil {
			slog.WarnContext(ctx, "Receipt upload failed, saving without receipt",
				"component", "receipts", "operation", "upload", "entry_id", e.ID, "error", err)
			res.ReceiptErr = err
		} else {
			e.Receipt = link
		}
	} else if sub.Receipt != nil {
		res.ReceiptErr = errors.New("receipt uploads are disabled")
	}

	// An append between another writer's read and its full rewrite would be
	// overwritten, so appends wait for those cycles.
	s.writeMu.Lock()
	ref, err := s.store.Append(ctx, e)
	s.writeMu.Unlock()
	if err != nil {
		return SubmitResult{}, fmt.Errorf("append entry: %w", err)
	}
	s.snapshots.Purge()

	slog.InfoContext(ctx, "Ledger entry appended",
		"component", "ledger", "operation", "append",
		"entry_id", e.ID, "person", e.Person, "category", e.Category,
		"cost_cents", e.Cost.Cents, "income_cents", e.Income.Cents, "ref", ref)

	s.publish(ctx, amqp.ReasonAppend, e.ID)

	res.Entry = e
	res.RowRef = ref
	return res, nil
}

// Patch holds the fields an administrator changes; nil fields stay as they are.
type Patch struct {
	Date              *core.Date
	Person            *string
	Category          *string
	Cost              *core.Money
	Income            *core.Money
	Note              *string
	Receipt           *string
	Reimbursed        *bool
	SurplusHandedOver *bool
	Confirmed         *bool
}

func (p Patch) apply(e core.Entry) core.Entry {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Person != nil {
		e.Person = *p.Person
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Cost != nil {
		e.Cost = *p.Cost
	}
	if p.Income != nil {
		e.Income = *p.Income
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.Receipt != nil {
		e.Receipt = *p.Receipt
	}
	if p.Reimbursed != nil {
		e.Reimbursed = *p.Reimbursed
	}
	if p.SurplusHandedOver != nil {
		e.SurplusHandedOver = *p.SurplusHandedOver
	}
	if p.Confirmed != nil {
		e.Confirmed = *p.Confirmed
	}
	return e.Normalize()
}

// UpdateEntry applies p to the entry with id on a fresh snapshot.
func (s *LedgerService) UpdateEntry(ctx context.Context, id string, p Patch) (core.Entry, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries, err := s.Snapshot(ctx, true)
	if err != nil {
		return core.Entry{}, err
	}
	idx := indexOf(entries, id)
	if idx < 0 {
		return core.Entry{}, fmt.Errorf("%w: %s", core.ErrEntryNotFound, id)
	}
	updated := p.apply(entries[idx])
	if err := core.ValidateEdit(updated); err != nil {
		return core.Entry{}, err
	}
	entries[idx] = updated

	if err := s.write(ctx, entries, amqp.ReasonUpdate, id); err != nil {
		return core.Entry{}, err
	}
	return updated, nil
}

// ReplaceAll overwrites the ledger with an administrator's bulk edit. Rows may
// be inserted or removed; rows without id get one.
func (s *LedgerService) ReplaceAll(ctx context.Context, entries []core.Entry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	out := make([]core.Entry, len(entries))
	for i, e := range entries {
		e = e.Normalize()
		if err := core.ValidateEdit(e); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = e
	}
	return s.write(ctx, sheets.EnsureIDs(out), amqp.ReasonReplace, "")
}

// SettleAll marks every entry reimbursed and surplus handed over, confirmed
// or not, on a fresh snapshot. It returns the number of entries written.
func (s *LedgerService) SettleAll(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries, err := s.Snapshot(ctx, true)
	if err != nil {
		return 0, err
	}
	settled := ledger.ApplyBulkSettlement(entries)
	if err := s.write(ctx, settled, amqp.ReasonSettleAll, ""); err != nil {
		return 0, err
	}
	return len(settled), nil
}

func (s *LedgerService) write(ctx context.Context, entries []core.Entry, reason, entryID string) error {
	if err := s.store.ReplaceAll(ctx, entries); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	s.snapshots.Purge()
	slog.InfoContext(ctx, "Ledger written",
		"component", "ledger", "operation", reason, "ledger_size", len(entries), "entry_id", entryID)
	s.publish(ctx, reason, entryID)
	return nil
}

// publish announces a change. Failures are logged only: the write already
// succeeded and the worker reconciles periodically.
func (s *LedgerService) publish(ctx context.Context, reason, entryID string) {
	if s.publisher == nil {
		return
	}
	var version int64
	if v, ok := s.store.(Versioned); ok {
		cur, err := v.CurrentVersion(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read ledger version", "component", "ledger", "error", err)
		}
		version = cur
	}
	if err := s.publisher.PublishLedgerChanged(ctx, version, reason, entryID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"component", "amqp", "reason", reason, "version", version, "error", err)
	}
}

func indexOf(entries []core.Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
