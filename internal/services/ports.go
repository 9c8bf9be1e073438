package services

import (
	"context"
	"io"

	"tutorkasse/internal/core"
)

//go:generate mockgen -source=ports.go -destination=ports_mock.go -package=services

// Store is the ledger persistence the service works against.
type Store interface {
	ReadAll(ctx context.Context) ([]core.Entry, error)
	Append(ctx context.Context, e core.Entry) (string, error)
	ReplaceAll(ctx context.Context, entries []core.Entry) error
}

// Publisher announces ledger changes to the sync worker.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, version int64, reason, entryID string) error
}

// Versioned stores expose a monotonically increasing ledger version.
type Versioned interface {
	CurrentVersion(ctx context.Context) (int64, error)
}

// ReceiptUploader hosts receipt images and returns a link.
type ReceiptUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}
