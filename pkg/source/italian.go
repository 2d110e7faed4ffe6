package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"assembly-ledger/pkg/domain"
)

var italianMonths = map[string]time.Month{
	"gennaio":   time.January,
	"febbraio":  time.February,
	"marzo":     time.March,
	"aprile":    time.April,
	"maggio":    time.May,
	"giugno":    time.June,
	"luglio":    time.July,
	"agosto":    time.August,
	"settembre": time.September,
	"ottobre":   time.October,
	"novembre":  time.November,
	"dicembre":  time.December,
}

var italianDate = regexp.MustCompile(`^\s*(\d{1,2})\s+(\pL+)\s+(\d{4})`)

// ParseItalianDate converts "10 Dicembre 2025" to "2025-12-10". The month
// name is case-insensitive.
func ParseItalianDate(text string) (string, error) {
	m := italianDate.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("no date in %q", text)
	}
	month, ok := italianMonths[strings.ToLower(m[2])]
	if !ok {
		return "", fmt.Errorf("unknown month %q", m[2])
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return "", fmt.Errorf("invalid day in %q", text)
	}
	return t.Format(domain.DateLayout), nil
}

// normalizeClock renders captured hours and minutes as HH:MM.
func normalizeClock(hours, minutes string) (string, bool) {
	h, err := strconv.Atoi(hours)
	if err != nil || h > 23 {
		return "", false
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}
