package core

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultRoster is the tutor list used when none is configured.
var DefaultRoster = []string{
	"Sami", "Lucas", "Sun", "Consti", "Denice", "Duc", "Gramos", "Irmak", "Kristina",
	"Lim", "Oumaima", "Zhouyu", "Amelie", "Anna", "Lisa", "Rion", "Sophie", "Valeria",
}

// DefaultCategories is the event list used when none is configured.
var DefaultCategories = []string{
	"Kochabend", "Backtag", "Getränkeeinkauf", "Getränkeverkauf", "Bereichsfest",
	"GAP Verleih", "Kassensturz", "Wohnheimsfrühstück", "Sonstiges",
}

// DefaultNeutralCategories are shown without a gain/loss tone.
var DefaultNeutralCategories = []string{"Getränkeeinkauf"}

// Tone classifies an entry for row colouring.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
)

// Taxonomy is the fixed roster of people and set of event categories.
type Taxonomy struct {
	roster     []string
	categories []string
	neutral    []string
}

// NewTaxonomy builds a taxonomy; empty lists fall back to the defaults.
func NewTaxonomy(roster, categories, neutral []string) Taxonomy {
	if len(roster) == 0 {
		roster = DefaultRoster
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	if neutral == nil {
		neutral = DefaultNeutralCategories
	}
	return Taxonomy{
		roster:     clean(roster),
		categories: clean(categories),
		neutral:    clean(neutral),
	}
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Roster returns the people sorted alphabetically, as offered in the entry form.
func (t Taxonomy) Roster() []string {
	out := slices.Clone(t.roster)
	slices.Sort(out)
	return out
}

// Categories returns the categories in configured order.
func (t Taxonomy) Categories() []string {
	return slices.Clone(t.categories)
}

func (t Taxonomy) HasPerson(name string) bool     { return slices.Contains(t.roster, name) }
func (t Taxonomy) HasCategory(name string) bool   { return slices.Contains(t.categories, name) }
func (t Taxonomy) IsNeutral(category string) bool { return slices.Contains(t.neutral, category) }

// Tone returns neutral for neutral categories, positive when income covers cost
// and negative otherwise.
func (t Taxonomy) Tone(e Entry) Tone {
	switch {
	case t.IsNeutral(e.Category):
		return ToneNeutral
	case e.Income.Cents >= e.Cost.Cents:
		return TonePositive
	default:
		return ToneNegative
	}
}

// ValidateSubmission checks a participant submission against the taxonomy.
func (t Taxonomy) ValidateSubmission(e Entry) error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Person == "" {
		return ErrEmptyPerson
	}
	if !t.HasPerson(e.Person) {
		return fmt.Errorf("%w: %q", ErrUnknownPerson, e.Person)
	}
	if !t.HasCategory(e.Category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, e.Category)
	}
	if e.Cost.Cents < 0 || e.Income.Cents < 0 {
		return ErrNegativeAmount
	}
	if len([]rune(e.Note)) > MaxNoteLength {
		return fmt.Errorf("%w (max %d characters)", ErrNoteTooLong, MaxNoteLength)
	}
	return nil
}

// ValidateEdit checks an administrator edit. Edits may reference people or
// categories outside the taxonomy; only amounts are constrained.
func ValidateEdit(e Entry) error {
	if e.Cost.Cents < 0 || e.Income.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}
