package core

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var german = message.NewPrinter(language.German)

// FormatEuro renders an amount in German notation, e.g. "1.234,50 €".
func FormatEuro(m Money) string {
	return german.Sprintf("%.2f €", m.Euros())
}

// FormatNumber renders an amount in German notation without currency sign.
func FormatNumber(m Money) string {
	return german.Sprintf("%.2f", m.Euros())
}
