package utils

import (
	"fmt"
	"strconv"
	"strings"
)

const Currency = "SSP"

// FormatPrice renders a whole-unit amount with the currency suffix, e.g. "1500 SSP".
func FormatPrice(amount int64) string {
	return fmt.Sprintf("%d %s", amount, Currency)
}

// FormatAmount renders an amount with thousand separators for documents, e.g. "SSP 12,500".
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s %s", sign, Currency, formatThousand(amount))
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
