package memory

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"tutorkasse/internal/core"
	ports "tutorkasse/internal/sheets"
)

var _ ports.LedgerStore = (*Store)(nil)

// Store keeps the ledger in process memory.
type Store struct {
	mu      sync.Mutex
	entries []core.Entry
}

func New(entries ...core.Entry) *Store {
	return &Store{entries: ports.EnsureIDs(entries)}
}

// NewFromFile seeds the store from a CSV export of the ledger sheet. A missing
// file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	entries, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return New(entries...), nil
}

// ReadCSV decodes a ledger table from CSV. Comma and semicolon separated
// files are accepted.
func ReadCSV(r io.Reader) ([]core.Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	rows, err := parseCSV(data, ',')
	if err == nil && len(rows) > 0 && len(rows[0]) == 1 {
		rows, err = parseCSV(data, ';')
	}
	if err != nil {
		return nil, err
	}
	entries, issues := ports.DecodeTable(rows)
	for _, is := range issues {
		slog.Warn("Seed cell coerced", "component", "sheets", "issue", is.String())
	}
	return entries, nil
}

func parseCSV(data []byte, sep rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func (s *Store) ReadAll(_ context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry(nil), s.entries...), nil
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Entry) (string, error) {
	if e.ID == "" {
		e.ID = core.NewID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return fmt.Sprintf("mem:%d", len(s.entries)), nil
}

func (s *Store) ReplaceAll(_ context.Context, entries []core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = ports.EnsureIDs(entries)
	return nil
}
