package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	crore = decimal.NewFromInt(10_000_000)
	lakh  = decimal.NewFromInt(100_000)
)

// FormatCrores formats an amount in rupees as crores, switching to lakh
// crores from 1,00,000 Cr. Zero formats as "N/A".
func FormatCrores(v float64) string {
	if v == 0 {
		return "N/A"
	}
	cr := decimal.NewFromFloat(v).Div(crore)
	if cr.Abs().GreaterThanOrEqual(lakh) {
		return cr.Div(lakh).StringFixed(2) + " Lakh Cr"
	}
	return cr.StringFixed(2) + " Cr"
}

// FormatVolume formats a share count in lakhs, switching to crores from
// 100 lakh. Zero formats as "N/A".
func FormatVolume(v int64) string {
	if v == 0 {
		return "N/A"
	}
	l := decimal.NewFromInt(v).Div(lakh)
	if l.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return l.Div(decimal.NewFromInt(100)).StringFixed(2) + " Cr"
	}
	return l.StringFixed(2) + " Lakh"
}

// FormatRupees formats a price with two decimals and the rupee sign.
func FormatRupees(v float64) string {
	return "₹" + decimal.NewFromFloat(v).StringFixed(2)
}

// FormatPercent formats a percentage with an explicit sign for gains.
func FormatPercent(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2) + "%"
	if v > 0 && !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return s
}

func formatOpt(v *float64, suffix string) string {
	if v == nil {
		return "N/A"
	}
	return decimal.NewFromFloat(*v).StringFixed(2) + suffix
}
