package geo

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Negotiable is shown when no salary figure is published
const Negotiable = "Thỏa thuận"

const million = 1_000_000

var viPrinter = message.NewPrinter(language.Vietnamese)

// FormatSalary renders a VND amount: whole or one-decimal millions from
// 1,000,000 up, vi-VN grouped dong below that
func FormatSalary(amount *float64) string {
	if amount == nil {
		return Negotiable
	}

	v := *amount
	if v >= million {
		m := v / million
		if math.Mod(v, million) == 0 {
			return strconv.FormatFloat(m, 'f', 0, 64) + " triệu"
		}
		return strconv.FormatFloat(math.Round(m*10)/10, 'f', -1, 64) + " triệu"
	}

	return viPrinter.Sprintf("%d", int64(math.Round(v))) + "đ"
}

// FormatSalaryRange combines a min/max pair
func FormatSalaryRange(lo, hi *float64) string {
	switch {
	case lo == nil && hi == nil:
		return Negotiable
	case lo != nil && hi != nil:
		return FormatSalary(lo) + " - " + FormatSalary(hi)
	case lo != nil:
		return "Từ " + FormatSalary(lo)
	default:
		return "Đến " + FormatSalary(hi)
	}
}
