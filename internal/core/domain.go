package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoReceipt is the value stored in the receipt column when no image was uploaded.
const NoReceipt = "Kein Beleg"

// MaxNoteLength bounds the free-text note of a submission.
const MaxNoteLength = 500

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Flags are the three independent administrator switches of an entry.
	Flags struct {
		Reimbursed        bool
		SurplusHandedOver bool
		Confirmed         bool
	}

	// Entry is one cash event of the fund. Receipt is empty when no receipt exists.
	Entry struct {
		ID       string
		Date     Date
		Person   string
		Category string
		Cost     Money
		Income   Money
		Note     string
		Receipt  string
		Flags
	}
)

var (
	ErrMissingDate     = errors.New("missing date")
	ErrEmptyPerson     = errors.New("empty person")
	ErrUnknownPerson   = errors.New("unknown person")
	ErrUnknownCategory = errors.New("unknown category")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNoteTooLong     = errors.New("note too long")
	ErrEntryNotFound   = errors.New("entry not found")
)

// NewID returns a fresh stable entry identifier.
func NewID() string {
	return uuid.NewString()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// String returns the ISO form used on the wire, or "" for a zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Display returns the German day.month.year form.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02.01.2006")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}
func (m Money) IsZero() bool { return m.Cents == 0 }

// Euros returns the euro value as a float64 for display purposes only.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// Net is income minus cost.
func (e Entry) Net() Money {
	return e.Income.Sub(e.Cost)
}

// HasReceipt reports whether a receipt link is attached.
func (e Entry) HasReceipt() bool {
	return e.Receipt != "" && e.Receipt != NoReceipt
}

// Normalize trims text fields and maps the receipt sentinel to empty.
func (e Entry) Normalize() Entry {
	e.Person = strings.TrimSpace(e.Person)
	e.Category = strings.TrimSpace(e.Category)
	e.Note = strings.TrimSpace(e.Note)
	e.Receipt = strings.TrimSpace(e.Receipt)
	if e.Receipt == NoReceipt {
		e.Receipt = ""
	}
	return e
}
