package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	if err := NewDate(2025, 1, 1).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Date{Time: time.Time{}}).Validate(); !errors.Is(err, ErrMissingDate) {
		t.Fatalf("expected ErrMissingDate, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	want := NewDate(2024, 11, 5)
	for _, in := range []string{"2024-11-05", "05.11.2024", "5.11.2024", "2024-11-05 18:30:00", "2024-11-05T18:30:00Z", "45601", "45601.00", "45601.75"} {
		if got := ParseDate(in); !got.Equal(want.Time) {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
	for _, in := range []string{"", "gestern", "2024-13-40", "1/5/2024", "0", "-3", "99999999"} {
		if got := ParseDate(in); !got.IsZero() {
			t.Fatalf("%q: expected zero date, got %s", in, got)
		}
	}
}

func TestParseFlag(t *testing.T) {
	for _, in := range []string{"TRUE", "true", "Wahr", "1", "x", " ja "} {
		if !ParseFlag(in) {
			t.Fatalf("%q should be true", in)
		}
	}
	for _, in := range []string{"", "FALSE", "0", "nein", "maybe"} {
		if ParseFlag(in) {
			t.Fatalf("%q should be false", in)
		}
	}
}

func TestEntryNetAndReceipt(t *testing.T) {
	e := Entry{Cost: Money{Cents: 1000}, Income: Money{Cents: 250}, Receipt: NoReceipt}
	if e.Net().Cents != -750 {
		t.Fatalf("expected net -750, got %d", e.Net().Cents)
	}
	if e.HasReceipt() {
		t.Fatalf("sentinel must not count as receipt")
	}
	if n := e.Normalize(); n.Receipt != "" {
		t.Fatalf("expected sentinel normalized to empty, got %q", n.Receipt)
	}
}

func TestTaxonomyValidateSubmission(t *testing.T) {
	tax := NewTaxonomy(nil, nil, nil)
	good := Entry{
		Date:     NewDate(2025, 1, 1),
		Person:   "Sami",
		Category: "Kochabend",
		Cost:     Money{Cents: 1000},
	}
	if err := tax.ValidateSubmission(good); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		mutate func(*Entry)
		want   error
	}{
		{func(e *Entry) { e.Date = Date{} }, ErrMissingDate},
		{func(e *Entry) { e.Person = "" }, ErrEmptyPerson},
		{func(e *Entry) { e.Person = "Mallory" }, ErrUnknownPerson},
		{func(e *Entry) { e.Category = "Party" }, ErrUnknownCategory},
		{func(e *Entry) { e.Income = Money{Cents: -1} }, ErrNegativeAmount},
		{func(e *Entry) { e.Note = strings.Repeat("a", MaxNoteLength+1) }, ErrNoteTooLong},
	}
	for i, tc := range cases {
		e := good
		tc.mutate(&e)
		if err := tax.ValidateSubmission(e); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestTaxonomyTone(t *testing.T) {
	tax := NewTaxonomy(nil, nil, nil)
	cases := []struct {
		e    Entry
		want Tone
	}{
		{Entry{Category: "Getränkeeinkauf", Cost: Money{Cents: 500}}, ToneNeutral},
		{Entry{Category: "Kochabend", Cost: Money{Cents: 500}, Income: Money{Cents: 500}}, TonePositive},
		{Entry{Category: "Kochabend", Cost: Money{Cents: 500}}, ToneNegative},
	}
	for i, tc := range cases {
		if got := tax.Tone(tc.e); got != tc.want {
			t.Fatalf("case %d expected %s, got %s", i, tc.want, got)
		}
	}
}

func TestTaxonomyRosterSorted(t *testing.T) {
	tax := NewTaxonomy([]string{"Zoe", " Anna ", "Zoe", ""}, []string{"Backtag"}, []string{})
	roster := tax.Roster()
	if len(roster) != 2 || roster[0] != "Anna" || roster[1] != "Zoe" {
		t.Fatalf("unexpected roster %v", roster)
	}
	if tax.IsNeutral("Getränkeeinkauf") {
		t.Fatalf("explicit empty neutral list must not fall back to defaults")
	}
}
