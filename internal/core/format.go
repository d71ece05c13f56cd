package core

import (
	"math"
	"strconv"
	"strings"
)

// currencyPrefix is the peso sign used across the UI.
const currencyPrefix = "₱"

// suffixTiers are the power-of-1000 suffixes for abbreviated amounts.
// Values past the last tier stay capped at it.
var suffixTiers = []string{"", "K", "M", "B", "T", "Q", "E", "Z", "Y", "R", "Q"}

// FormatAmount renders a monetary value for display. Below one million
// (absolute) the full number is shown with thousands separators and two
// decimals, e.g. 1234.5 -> "₱1,234.50". From one million up the value
// is scaled down by powers of 1000 and abbreviated with a suffix tier:
// whole scaled values drop the decimals, values of ten or more keep one
// decimal, smaller ones keep two. Non-finite input has no monetary
// meaning and is passed through unprefixed.
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	if math.Abs(v) < 1_000_000 {
		return currencyPrefix + groupThousands(strconv.FormatFloat(v, 'f', 2, 64))
	}

	magnitude := 0
	scaled := v
	for math.Abs(scaled) >= 1000 && magnitude < len(suffixTiers)-1 {
		scaled /= 1000
		magnitude++
	}

	var num string
	switch {
	case scaled == math.Trunc(scaled):
		num = strconv.FormatInt(int64(scaled), 10)
	case math.Abs(scaled) >= 10:
		num = trimZeros(strconv.FormatFloat(scaled, 'f', 1, 64))
	default:
		num = trimZeros(strconv.FormatFloat(scaled, 'f', 2, 64))
	}

	return currencyPrefix + num + suffixTiers[magnitude]
}

// FormatAverage renders a tagged period average: either the formatted
// amount or the tallying marker while there is not enough history.
func FormatAverage(p PeriodAverage) string {
	if p.Tallying {
		return "tallying"
	}
	return FormatAmount(p.Amount)
}

// trimZeros drops insignificant trailing decimals: "1.50" -> "1.5".
func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	return strings.TrimRight(strings.TrimRight(s, "0"), ".")
}

// groupThousands inserts comma separators into the integer part of an
// already fixed-point formatted number like "-1234567.89".
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + fracPart
}
