// Package money converts between donor-entered dollar text and integer cents.
package money

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// dollarPattern matches a positive dollar amount with optional "$", comma
// thousands groups, and an optional two-digit fractional part. Surrounding
// whitespace is trimmed before matching since \s only covers ASCII.
var dollarPattern = regexp.MustCompile(`^\$?([1-9]\d*)((?:,\d{3})*)(?:\.(\d{2}))?$`)

var printer = message.NewPrinter(language.AmericanEnglish)

// ParseCents parses a non-zero positive dollar amount into cents.
// It returns false for anything that is not a well-formed amount.
func ParseCents(s string) (int64, bool) {
	m := dollarPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}

	leading, groups, fraction := m[1], m[2], m[3]
	if fraction == "" {
		fraction = "00"
	}

	cents, err := strconv.ParseInt(leading+strings.ReplaceAll(groups, ",", "")+fraction, 10, 64)
	if err != nil {
		// Only reachable on int64 overflow.
		return 0, false
	}
	return cents, true
}

// FormatCents renders cents in the canonical "X.YY" form accepted by ParseCents.
func FormatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// FormatDollars renders cents for people, e.g. "$1,234.56".
func FormatDollars(cents int64) string {
	return "$" + printer.Sprintf("%d", cents/100) + fmt.Sprintf(".%02d", cents%100)
}
