package pricing

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format renders amount rounded to cents with the currency symbol used in lang, e.g. "$ 345.00".
func Format(amount float64, iso string, lang language.Tag) (string, error) {
	unit, err := currency.ParseISO(iso)
	if err != nil {
		return "", fmt.Errorf("parse currency %q: %w", iso, err)
	}

	p := message.NewPrinter(lang)

	return p.Sprintf("%v %.2f", currency.Symbol(unit), Round2(amount)), nil
}

// Display is the rounded breakdown rendered for lang.
type Display struct {
	Subtotal   string `json:"subtotal"`
	Taxes      string `json:"taxes"`
	ServiceFee string `json:"service_fee"`
	AddOnFees  string `json:"add_on_fees"`
	Discount   string `json:"discount"`
	Total      string `json:"total"`
}

func (b Breakdown) Display(lang language.Tag) (Display, error) {
	var (
		d   Display
		err error
	)

	fields := []struct {
		dst *string
		v   float64
	}{
		{&d.Subtotal, b.Subtotal},
		{&d.Taxes, b.Taxes},
		{&d.ServiceFee, b.ServiceFee},
		{&d.AddOnFees, b.AddOnFees},
		{&d.Discount, b.Discount},
		{&d.Total, b.Total},
	}

	for _, f := range fields {
		if *f.dst, err = Format(f.v, b.Currency, lang); err != nil {
			return Display{}, err
		}
	}

	return d, nil
}
