package sheets

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tutorkasse/internal/core"
)

// Column is a field of the ledger table contract.
type Column int

const (
	ColDate Column = iota
	ColPerson
	ColCategory
	ColCost
	ColIncome
	ColNote
	ColReceipt
	ColReimbursed
	ColSurplusHandedOver
	ColConfirmed
	ColID
	numColumns

	colUnknown Column = -1
)

// Header is the canonical header row written on full writes. The first ten
// names are the ones the fund's spreadsheet has always used.
var Header = []string{
	"Datum", "Tutor", "Event", "Kosten", "Einnahmen", "Notiz", "Beleg",
	"Rückerstattet", "ÜberschussÜbergeben", "Bestätigt", "ID",
}

var aliases = map[string]Column{
	"date": ColDate, "datum": ColDate,
	"person": ColPerson, "tutor": ColPerson,
	"category": ColCategory, "event": ColCategory,
	"cost": ColCost, "kosten": ColCost,
	"income": ColIncome, "einnahmen": ColIncome,
	"note": ColNote, "notiz": ColNote,
	"receipt_reference": ColReceipt, "receipt": ColReceipt, "beleg": ColReceipt,
	"reimbursed": ColReimbursed, "rückerstattet": ColReimbursed, "rueckerstattet": ColReimbursed,
	"surplus_handed_over": ColSurplusHandedOver, "überschussübergeben": ColSurplusHandedOver,
	"ueberschussuebergeben": ColSurplusHandedOver,
	"confirmed": ColConfirmed, "bestätigt": ColConfirmed, "bestaetigt": ColConfirmed,
	"id": ColID,
}

// idNamespace seeds the deterministic ids given to rows stored without one.
var idNamespace = uuid.MustParse("6f0c58a4-3c1e-4c55-9a57-2f1b0e6d7a10")

// Layout maps sheet columns to contract fields.
type Layout struct {
	cols []Column
}

// CanonicalLayout is the layout of Header.
func CanonicalLayout() Layout {
	cols := make([]Column, numColumns)
	for i := range cols {
		cols[i] = Column(i)
	}
	return Layout{cols: cols}
}

// ParseHeader builds a layout from a header row. Unknown columns are kept as
// placeholders so positions line up; ok is false when no column is recognised.
func ParseHeader(header []string) (l Layout, ok bool) {
	seen := map[Column]bool{}
	for _, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "")
		c, found := aliases[key]
		if !found || seen[c] {
			l.cols = append(l.cols, colUnknown)
			continue
		}
		seen[c] = true
		l.cols = append(l.cols, c)
		ok = true
	}
	return l, ok
}

// Has reports whether the layout stores column c.
func (l Layout) Has(c Column) bool {
	for _, lc := range l.cols {
		if lc == c {
			return true
		}
	}
	return false
}

// Width is the number of sheet columns of the layout.
func (l Layout) Width() int { return len(l.cols) }

// Issue records a cell that was coerced to its default.
type Issue struct {
	Row    int // 1-based sheet row, header included
	Column string
	Value  string
}

func (i Issue) String() string {
	return fmt.Sprintf("row %d column %s: coerced %q", i.Row, i.Column, i.Value)
}

// DecodeTable turns raw rows (header first) into entries. Fully empty rows are
// skipped, unknown columns dropped and malformed cells coerced, never fatal.
func DecodeTable(rows [][]string) ([]core.Entry, []Issue) {
	if len(rows) == 0 {
		return nil, nil
	}
	layout, ok := ParseHeader(rows[0])
	if !ok {
		return nil, []Issue{{Row: 1, Column: "header", Value: strings.Join(rows[0], ",")}}
	}
	var (
		entries []core.Entry
		issues  []Issue
	)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		e, rowIssues := layout.decode(row, i+2)
		entries = append(entries, e)
		issues = append(issues, rowIssues...)
	}
	return entries, issues
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (l Layout) decode(row []string, sheetRow int) (core.Entry, []Issue) {
	var (
		e      core.Entry
		issues []Issue
	)
	for i, c := range l.cols {
		if c == colUnknown || i >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[i])
		switch c {
		case ColID:
			e.ID = v
		case ColDate:
			e.Date = core.ParseDate(v)
			if v != "" && e.Date.IsZero() {
				issues = append(issues, Issue{Row: sheetRow, Column: Header[c], Value: v})
			}
		case ColPerson:
			e.Person = v
		case ColCategory:
			e.Category = v
		case ColCost, ColIncome:
			m, ok := core.ParseAmount(v)
			if !ok {
				issues = append(issues, Issue{Row: sheetRow, Column: Header[c], Value: v})
			}
			if c == ColCost {
				e.Cost = m
			} else {
				e.Income = m
			}
		case ColNote:
			e.Note = v
		case ColReceipt:
			e.Receipt = v
		case ColReimbursed:
			e.Reimbursed = core.ParseFlag(v)
		case ColSurplusHandedOver:
			e.SurplusHandedOver = core.ParseFlag(v)
		case ColConfirmed:
			e.Confirmed = core.ParseFlag(v)
		}
	}
	if e.ID == "" {
		e.ID = DerivedID(sheetRow, row)
	}
	return e.Normalize(), issues
}

// DerivedID is the deterministic id of a stored row that carries none. It is
// stable as long as the row keeps its position and content.
func DerivedID(sheetRow int, cells []string) string {
	key := fmt.Sprintf("%d\x1f%s", sheetRow, strings.Join(cells, "\x1f"))
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// Values encodes e in layout order with typed cells: amounts as float64
// euros, flags as bool and everything else as string.
func (l Layout) Values(e core.Entry) []any {
	out := make([]any, len(l.cols))
	for i, c := range l.cols {
		switch c {
		case ColCost:
			out[i] = e.Cost.Euros()
		case ColIncome:
			out[i] = e.Income.Euros()
		case ColReimbursed:
			out[i] = e.Reimbursed
		case ColSurplusHandedOver:
			out[i] = e.SurplusHandedOver
		case ColConfirmed:
			out[i] = e.Confirmed
		default:
			out[i] = l.text(c, e)
		}
	}
	return out
}

// Strings encodes e in layout order as text cells.
func (l Layout) Strings(e core.Entry) []string {
	out := make([]string, len(l.cols))
	for i, c := range l.cols {
		switch c {
		case ColCost:
			out[i] = core.FormatDecimal(e.Cost)
		case ColIncome:
			out[i] = core.FormatDecimal(e.Income)
		case ColReimbursed:
			out[i] = core.FormatFlag(e.Reimbursed)
		case ColSurplusHandedOver:
			out[i] = core.FormatFlag(e.SurplusHandedOver)
		case ColConfirmed:
			out[i] = core.FormatFlag(e.Confirmed)
		default:
			out[i] = l.text(c, e)
		}
	}
	return out
}

func (l Layout) text(c Column, e core.Entry) string {
	switch c {
	case ColID:
		return e.ID
	case ColDate:
		return e.Date.String()
	case ColPerson:
		return e.Person
	case ColCategory:
		return e.Category
	case ColNote:
		return e.Note
	case ColReceipt:
		if e.Receipt == "" {
			return core.NoReceipt
		}
		return e.Receipt
	default:
		return ""
	}
}

// EncodeTable returns the canonical header followed by one row per entry.
func EncodeTable(entries []core.Entry) [][]string {
	l := CanonicalLayout()
	rows := make([][]string, 0, len(entries)+1)
	rows = append(rows, append([]string(nil), Header...))
	for _, e := range entries {
		rows = append(rows, l.Strings(e))
	}
	return rows
}

// EnsureIDs gives every entry without an id a fresh one.
func EnsureIDs(entries []core.Entry) []core.Entry {
	out := append([]core.Entry(nil), entries...)
	for i := range out {
		if strings.TrimSpace(out[i].ID) == "" {
			out[i].ID = core.NewID()
		}
	}
	return out
}

// CellString converts a cell value returned by a spreadsheet API to text.
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return core.FormatDecimal(core.Money{Cents: int64(t*100 + sign(t)*0.5)})
	default:
		return fmt.Sprint(t)
	}
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
