// Package reconcile decides what to do with a freshly fetched session and
// builds the merged rows to persist. It performs no I/O.
package reconcile

import (
	"sort"
	"time"

	"assembly-ledger/pkg/domain"
)

// Input is everything the reconciliation needs about one session.
type Input struct {
	Session *domain.SessionDescriptor
	// Stored reports whether the ledger holds any row for the session.
	Stored      bool
	StoredCount int
	Recent      bool
	// Preserved maps the stored slots to their foreign fields. It must be
	// captured before the session's rows are deleted.
	Preserved map[domain.Slot]domain.Preserved
}

// Plan is the result of a reconciliation.
type Plan struct {
	Decision Decision
	// Rows is the full merged row set for new and stale-refresh decisions.
	Rows []domain.VideoRecord
	// Dropped counts incoming videos without a usable start time.
	Dropped int
	// Conflicts counts incoming videos that collided on the same slot.
	Conflicts int
	// Orphaned lists published slots the refreshed session no longer has.
	Orphaned []domain.Slot
}

// Mutates reports whether the plan writes to the ledger.
func (p Plan) Mutates() bool {
	return p.Decision != DecisionSkip
}

// Normalize drops videos without a parseable start time and resolves slot
// collisions. The last video for a slot wins and takes the position of the
// first one, so the result is deterministic for a given page.
func Normalize(s *domain.SessionDescriptor) (videos []domain.VideoDescriptor, dropped, conflicts int) {
	position := make(map[domain.Slot]int, len(s.Videos))
	for _, v := range s.Videos {
		if _, err := time.Parse(domain.TimeLayout, v.StartTime); err != nil {
			dropped++
			continue
		}
		slot := domain.Slot{Date: s.VideoDate(v), Time: v.StartTime}
		if i, ok := position[slot]; ok {
			videos[i] = v
			conflicts++
			continue
		}
		position[slot] = len(videos)
		videos = append(videos, v)
	}
	return videos, dropped, conflicts
}

// Reconcile compares in.Session with the stored state and returns the plan.
// The incoming count is taken after normalization.
func Reconcile(in Input, now time.Time) Plan {
	videos, dropped, conflicts := Normalize(in.Session)
	plan := Plan{
		Decision:  Decide(in.Stored, len(videos), in.StoredCount, in.Recent),
		Dropped:   dropped,
		Conflicts: conflicts,
	}
	if !plan.Mutates() {
		return plan
	}

	preserved := in.Preserved
	if plan.Decision == DecisionNew {
		preserved = nil
	}

	seen := make(map[domain.Slot]bool, len(videos))
	plan.Rows = make([]domain.VideoRecord, 0, len(videos))
	for _, v := range videos {
		rec := domain.Preserve(domain.NewRecord(in.Session, v), preserved, now)
		seen[rec.Slot()] = true
		plan.Rows = append(plan.Rows, rec)
	}

	for slot, p := range preserved {
		if p.ExternalID != "" && !seen[slot] {
			plan.Orphaned = append(plan.Orphaned, slot)
		}
	}
	sort.Slice(plan.Orphaned, func(i, j int) bool {
		a, b := plan.Orphaned[i], plan.Orphaned[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Time < b.Time
	})
	return plan
}
