package http

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tutorkasse/internal/core"
	"tutorkasse/internal/ledger"
)

// entryJSON is the wire form of an entry in the admin bulk editor.
// Amounts are decimal euros and accept both JSON numbers and strings.
type entryJSON struct {
	ID                string          `json:"id,omitempty"`
	Date              string          `json:"date"`
	Person            string          `json:"person"`
	Category          string          `json:"category"`
	Cost              decimal.Decimal `json:"cost"`
	Income            decimal.Decimal `json:"income"`
	Note              string          `json:"note"`
	Receipt           string          `json:"receipt"`
	Reimbursed        bool            `json:"reimbursed"`
	SurplusHandedOver bool            `json:"surplus_handed_over"`
	Confirmed         bool            `json:"confirmed"`
}

func toEntryJSON(e core.Entry) entryJSON {
	return entryJSON{
		ID:                e.ID,
		Date:              e.Date.String(),
		Person:            e.Person,
		Category:          e.Category,
		Cost:              toDecimal(e.Cost),
		Income:            toDecimal(e.Income),
		Note:              e.Note,
		Receipt:           e.Receipt,
		Reimbursed:        e.Reimbursed,
		SurplusHandedOver: e.SurplusHandedOver,
		Confirmed:         e.Confirmed,
	}
}

func (j entryJSON) entry() (core.Entry, error) {
	cost, err := fromDecimal(j.Cost)
	if err != nil {
		return core.Entry{}, fmt.Errorf("cost: %w", err)
	}
	income, err := fromDecimal(j.Income)
	if err != nil {
		return core.Entry{}, fmt.Errorf("income: %w", err)
	}
	return core.Entry{
		ID:       j.ID,
		Date:     core.ParseDate(j.Date),
		Person:   j.Person,
		Category: j.Category,
		Cost:     cost,
		Income:   income,
		Note:     j.Note,
		Receipt:  j.Receipt,
		Flags: core.Flags{
			Reimbursed:        j.Reimbursed,
			SurplusHandedOver: j.SurplusHandedOver,
			Confirmed:         j.Confirmed,
		},
	}, nil
}

func toDecimal(m core.Money) decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func fromDecimal(d decimal.Decimal) (core.Money, error) {
	cents, err := core.ParseCents(d.String())
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

type balancePointJSON struct {
	EntryID string          `json:"entry_id"`
	Date    string          `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

func toBalanceJSON(points []ledger.BalancePoint) []balancePointJSON {
	out := make([]balancePointJSON, 0, len(points))
	for _, p := range points {
		out = append(out, balancePointJSON{
			EntryID: p.EntryID,
			Date:    p.Date.String(),
			Balance: toDecimal(p.Balance),
		})
	}
	return out
}

type settlementJSON struct {
	Person       string          `json:"person"`
	OwedToPerson decimal.Decimal `json:"owed_to_person"`
	OwedByPerson decimal.Decimal `json:"owed_by_person"`
	Net          decimal.Decimal `json:"net"`
	Status       ledger.Status   `json:"status"`
}

func toSettlementsJSON(settlements []ledger.Settlement) []settlementJSON {
	out := make([]settlementJSON, 0, len(settlements))
	for _, s := range settlements {
		out = append(out, settlementJSON{
			Person:       s.Person,
			OwedToPerson: toDecimal(s.OwedToPerson),
			OwedByPerson: toDecimal(s.OwedByPerson),
			Net:          toDecimal(s.Net),
			Status:       s.Status(),
		})
	}
	return out
}
