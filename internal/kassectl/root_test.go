package kassectl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tutorkasse/internal/core"
	"tutorkasse/internal/services"
	"tutorkasse/internal/sheets/memory"
)

func seed() []core.Entry {
	return []core.Entry{
		{ID: "e1", Date: core.NewDate(2024, 5, 2), Person: "Sami", Category: "Kochabend",
			Cost: core.Money{Cents: 2000}, Flags: core.Flags{Confirmed: true}},
		{ID: "e2", Date: core.NewDate(2024, 5, 3), Person: "Lucas", Category: "Getränkeverkauf",
			Income: core.Money{Cents: 5000}, Flags: core.Flags{Confirmed: true}},
		{ID: "e3", Date: core.NewDate(2024, 5, 4), Person: "Sami", Category: "Backtag",
			Cost: core.Money{Cents: 700}},
	}
}

type harness struct {
	store  *memory.Store
	closed int
}

func newHarness() *harness {
	return &harness{store: memory.New(seed()...)}
}

func (h *harness) open(ctx context.Context) (Ledger, func() error, error) {
	svc := services.NewLedgerService(h.store, core.NewTaxonomy(nil, nil, nil), services.Options{})
	return svc, func() error { h.closed++; return nil }, nil
}

func run(t *testing.T, open Opener, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand(open)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestBalance(t *testing.T) {
	h := newHarness()
	out, _, err := run(t, h.open, "balance")
	require.NoError(t, err)

	assert.Contains(t, out, "Kassenstand:  30,00 €")
	assert.Contains(t, out, "2 bestätigt, 1 offen")
	assert.Contains(t, out, "Kochabend")
	assert.NotContains(t, out, "Backtag")
	assert.Equal(t, 1, h.closed)
}

func TestSettlements(t *testing.T) {
	h := newHarness()
	out, _, err := run(t, h.open, "settlements")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "Lucas"))
	assert.Contains(t, lines[1], "pays")
	assert.True(t, strings.HasPrefix(lines[2], "Sami"))
	assert.Contains(t, lines[2], "receives")
}

func TestSettleAllNeedsConfirmation(t *testing.T) {
	h := newHarness()
	_, _, err := run(t, h.open, "settle-all")
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Zero(t, h.closed)

	out, _, err := run(t, h.open, "settle-all", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "3 Einträge abgerechnet")

	out, _, err = run(t, h.open, "settlements")
	require.NoError(t, err)
	assert.Equal(t, "Alles abgerechnet.\n", out)

	out, _, err = run(t, h.open, "settlements", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "settled")
}

func TestExport(t *testing.T) {
	h := newHarness()

	out, _, err := run(t, h.open, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "Kochabend")

	path := filepath.Join(t.TempDir(), "kasse.xlsx")
	_, stderr, err := run(t, h.open, "export", "--format", "xlsx", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "3 Einträge")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")

	_, _, err = run(t, h.open, "export", "--format", "pdf")
	assert.Error(t, err)
}

func TestOpenFailure(t *testing.T) {
	boom := errors.New("no backend")
	open := func(ctx context.Context) (Ledger, func() error, error) { return nil, nil, boom }

	_, _, err := run(t, open, "balance")
	assert.ErrorIs(t, err, boom)
}

func TestHashPassword(t *testing.T) {
	out, _, err := run(t, nil, "hash-password", "geheim")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("geheim")))

	_, _, err = run(t, nil, "hash-password")
	assert.Error(t, err)
}
