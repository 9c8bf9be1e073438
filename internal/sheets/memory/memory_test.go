package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tutorkasse/internal/core"
)

func TestMemoryStoreAppendReadReplace(t *testing.T) {
	ctx := context.Background()
	s := New()

	ref, err := s.Append(ctx, core.Entry{Person: "Sami", Cost: core.Money{Cents: 123}})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	got, err := s.ReadAll(ctx)
	if err != nil || len(got) != 1 || got[0].ID == "" {
		t.Fatalf("unexpected read: %+v err=%v", got, err)
	}

	got[0].Person = "mutated"
	again, _ := s.ReadAll(ctx)
	if again[0].Person != "Sami" {
		t.Fatalf("ReadAll must return a copy")
	}

	if err := s.ReplaceAll(ctx, []core.Entry{{Person: "Anna"}, {Person: "Lisa"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = s.ReadAll(ctx)
	if len(got) != 2 || got[0].Person != "Anna" || got[1].ID == "" {
		t.Fatalf("unexpected entries after replace: %+v", got)
	}
}

func TestNewFromFileMissingIsEmpty(t *testing.T) {
	s, err := NewFromFile(filepath.Join(t.TempDir(), "none.csv"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	got, _ := s.ReadAll(context.Background())
	if len(got) != 0 {
		t.Fatalf("expected empty store, got %d", len(got))
	}
}

func TestNewFromFileSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.csv")
	content := "\xEF\xBB\xBFDatum;Tutor;Event;Kosten;Einnahmen;Bestätigt\n" +
		"2024-10-01;Sami;Kochabend;12,50;0;TRUE\n" +
		";;;;;\n" +
		"2024-10-02;Anna;Getränkeverkauf;0;30;FALSE\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, _ := s.ReadAll(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Cost.Cents != 1250 || !got[0].Confirmed || got[1].Income.Cents != 3000 {
		t.Fatalf("unexpected entries %+v", got)
	}
}

func TestReadCSVCommaSeparated(t *testing.T) {
	entries, err := ReadCSV(strings.NewReader("date,person,income\n2024-10-01,Sun,\"4,20\"\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 1 || entries[0].Income.Cents != 420 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
