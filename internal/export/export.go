// Package export writes the ledger as CSV or XLSX for offline bookkeeping.
// Both formats carry every stored column plus the entry's net and the
// running balance after it.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tutorkasse/internal/core"
	"tutorkasse/internal/ledger"
	"tutorkasse/internal/sheets"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"

	SheetName = "Kasse"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Columns is the export header.
var Columns = append(append([]string(nil), sheets.Header...), "Netto", "Kassenstand")

// ParseFormat accepts "csv" and "xlsx" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want csv or xlsx)", s)
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename names an export taken at t.
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("tutorkasse_%s.%s", t.Format("20060102"), f)
}

// Write encodes entries in format f.
func Write(w io.Writer, f Format, entries []core.Entry) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, entries)
	case FormatXLSX:
		return WriteXLSX(w, entries)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// germanDecimal renders cents with a comma separator, e.g. "-12,50".
func germanDecimal(m core.Money) string {
	return strings.Replace(core.FormatDecimal(m), ".", ",", 1)
}

// WriteCSV writes a semicolon separated file with a UTF-8 BOM and comma
// decimals, the dialect German spreadsheet programs open without an import
// dialog.
func WriteCSV(w io.Writer, entries []core.Entry) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	balance := ledger.RunningBalance(entries)
	for i, e := range entries {
		row := []string{
			e.Date.Display(),
			e.Person,
			e.Category,
			germanDecimal(e.Cost),
			germanDecimal(e.Income),
			e.Note,
			receipt(e),
			core.FormatFlag(e.Reimbursed),
			core.FormatFlag(e.SurplusHandedOver),
			core.FormatFlag(e.Confirmed),
			e.ID,
			germanDecimal(e.Net()),
			germanDecimal(balance[i].Balance),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func receipt(e core.Entry) string {
	if e.HasReceipt() {
		return e.Receipt
	}
	return core.NoReceipt
}

// WriteXLSX writes a workbook with one sheet named Kasse. Dates and amounts
// are typed cells.
func WriteXLSX(w io.Writer, entries []core.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	dateFmt := "dd.mm.yyyy"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return err
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return err
	}

	balance := ledger.RunningBalance(entries)
	for i, e := range entries {
		var date any = ""
		if !e.Date.IsZero() {
			date = e.Date.Time
		}
		row := []any{
			date,
			e.Person,
			e.Category,
			e.Cost.Euros(),
			e.Income.Euros(),
			e.Note,
			receipt(e),
			e.Reimbursed,
			e.SurplusHandedOver,
			e.Confirmed,
			e.ID,
			e.Net().Euros(),
			balance[i].Balance.Euros(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if n := len(entries); n > 0 {
		last := n + 1
		if err := f.SetCellStyle(SheetName, "A2", fmt.Sprintf("A%d", last), dateStyle); err != nil {
			return err
		}
		for _, col := range []string{"D", "E", "L", "M"} {
			if err := f.SetCellStyle(SheetName, col+"2", fmt.Sprintf("%s%d", col, last), moneyStyle); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "B", "C", 18)
	_ = f.SetColWidth(SheetName, "F", "G", 30)
	_ = f.SetColWidth(SheetName, "K", "K", 38)
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
