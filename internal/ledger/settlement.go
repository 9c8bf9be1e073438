package ledger

import (
	"slices"

	"tutorkasse/internal/core"
)

// Status is the direction of a settlement.
type Status string

const (
	StatusReceives Status = "receives" // the fund owes the person
	StatusPays     Status = "pays"     // the person owes the fund
	StatusSettled  Status = "settled"
)

// Settlement is what is open between the fund and one person.
type Settlement struct {
	Person string
	// OwedToPerson is the confirmed, not yet reimbursed cost.
	OwedToPerson core.Money
	// OwedByPerson is the confirmed income not yet handed over.
	OwedByPerson core.Money
	// Net is OwedToPerson minus OwedByPerson.
	Net core.Money
}

// Status returns receives for a positive net, pays for a negative one and
// settled for zero, even when both sides are non-zero.
func (s Settlement) Status() Status {
	switch {
	case s.Net.Cents > 0:
		return StatusReceives
	case s.Net.Cents < 0:
		return StatusPays
	default:
		return StatusSettled
	}
}

// Open reports whether anything is outstanding on either side.
func (s Settlement) Open() bool {
	return !s.Net.IsZero() || s.OwedToPerson.Cents > 0 || s.OwedByPerson.Cents > 0
}

// Settle computes the settlement of person over the counted entries.
func Settle(entries []core.Entry, person string) Settlement {
	s := Settlement{Person: person}
	for _, e := range entries {
		if e.Person != person || !Counts(e) {
			continue
		}
		if !e.Reimbursed {
			s.OwedToPerson = s.OwedToPerson.Add(e.Cost)
		}
		if !e.SurplusHandedOver {
			s.OwedByPerson = s.OwedByPerson.Add(e.Income)
		}
	}
	s.Net = s.OwedToPerson.Sub(s.OwedByPerson)
	return s
}

// People returns the distinct non-empty persons of entries, sorted.
func People(entries []core.Entry) []string {
	var people []string
	for _, e := range entries {
		if e.Person != "" && !slices.Contains(people, e.Person) {
			people = append(people, e.Person)
		}
	}
	slices.Sort(people)
	return people
}

// Settlements returns one settlement per person appearing in entries.
func Settlements(entries []core.Entry) []Settlement {
	people := People(entries)
	out := make([]Settlement, 0, len(people))
	for _, p := range people {
		out = append(out, Settle(entries, p))
	}
	return out
}

// OpenSettlements returns the settlements with something outstanding.
func OpenSettlements(entries []core.Entry) []Settlement {
	var out []Settlement
	for _, s := range Settlements(entries) {
		if s.Open() {
			out = append(out, s)
		}
	}
	return out
}
