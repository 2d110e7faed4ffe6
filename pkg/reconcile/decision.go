package reconcile

import (
	"time"

	"assembly-ledger/pkg/domain"
)

// Decision is the outcome of comparing a fetched session with the ledger.
type Decision string

const (
	// DecisionNew means the session has no stored rows.
	DecisionNew Decision = "new"
	// DecisionSkip means the stored rows are trusted as they are.
	DecisionSkip Decision = "unchanged-skip"
	// DecisionRefresh means the stored rows are replaced wholesale.
	DecisionRefresh Decision = "stale-refresh"
)

// DefaultRecencyWindow is the trailing window in which sessions are always
// re-validated.
const DefaultRecencyWindow = 14 * 24 * time.Hour

// NoRecencyWindow disables forced refreshes: only a changed video count
// refreshes a stored session.
const NoRecencyWindow time.Duration = -1

// Decide applies the decision table. A same-count session inside the recency
// window is refreshed anyway because the site may rotate video ids without
// changing the count.
func Decide(stored bool, nNew, nOld int, recent bool) Decision {
	switch {
	case !stored:
		return DecisionNew
	case nNew != nOld:
		return DecisionRefresh
	case recent:
		return DecisionRefresh
	default:
		return DecisionSkip
	}
}

// IsRecent reports whether sessionDate falls within window before now. Dates
// in the future are recent. Empty or unparseable dates are not, and nothing is
// recent under a negative window.
func IsRecent(sessionDate string, now time.Time, window time.Duration) bool {
	if sessionDate == "" || window < 0 {
		return false
	}
	d, err := domain.ParseDate(sessionDate)
	if err != nil {
		return false
	}
	y, m, day := now.Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return !d.Before(today.Add(-window))
}
