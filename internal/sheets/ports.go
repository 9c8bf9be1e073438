package sheets

import (
	"context"

	"tutorkasse/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerReader loads the full ledger in stored order.
	LedgerReader interface {
		ReadAll(ctx context.Context) ([]core.Entry, error)
	}

	// LedgerWriter persists entries. Append adds one row at the end and
	// returns an adapter specific row reference. ReplaceAll overwrites the
	// whole ledger with entries in the given order.
	LedgerWriter interface {
		Append(ctx context.Context, e core.Entry) (rowRef string, err error)
		ReplaceAll(ctx context.Context, entries []core.Entry) error
	}

	LedgerStore interface {
		LedgerReader
		LedgerWriter
	}
)
