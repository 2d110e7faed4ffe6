// Package ledger persists video records in a flat CSV table.
//
// Reads are lenient: a missing or unreadable file is an empty ledger. Every
// mutation re-reads the file strictly and rewrites it through a temp file and
// an atomic rename, so a crash never leaves a truncated table and a failed
// read can never clobber existing rows.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assembly-ledger/pkg/domain"
	"assembly-ledger/pkg/logger"
)

// SessionIndex summarizes the stored rows of one session.
type SessionIndex struct {
	Count      int
	Identities map[domain.Identity]struct{}
}

// Publication is the narrow set of fields the publishing pipeline may write.
type Publication struct {
	// ExternalID is the identifier on the external platform. Empty keeps the
	// current value.
	ExternalID    string
	Status        string
	FailureReason string
	// CheckedAt stamps last_check. Zero means now.
	CheckedAt time.Time
}

// UploadStats counts rows by publication state.
type UploadStats struct {
	Total       int
	Published   int
	Unpublished int
	Success     int
	Failed      int
	Pending     int
}

// Store is the CSV-backed ledger.
type Store struct {
	path string
	log  logger.Logger
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for non-fatal read problems.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock overrides the clock used for last_check stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open prepares the ledger at path. A missing file is created with the current
// header. A file whose header lacks schema columns is rewritten once with the
// columns backfilled before Open returns.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path: path,
		log:  logger.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StoreError{Op: "open", Path: path, Err: err}
	}

	header, err := readHeader(path)
	if err != nil {
		s.log.Warn("Ledger header unreadable, continuing with empty ledger",
			logger.String("path", path), logger.Error(err))
		return s, nil
	}

	if header == nil {
		if err := writeTable(path, &table{}); err != nil {
			return nil, &StoreError{Op: "create", Path: path, Err: err}
		}
		s.log.Info("Ledger created", logger.String("path", path))
		return s, nil
	}

	if missing := missingColumns(header); len(missing) > 0 {
		if err := s.mutate("migrate", func(*table) error { return nil }); err != nil {
			return nil, err
		}
		s.log.Info("Ledger schema updated with new columns",
			logger.String("path", path), logger.Strings("columns", missing))
	}
	return s, nil
}

// Path returns the ledger file path.
func (s *Store) Path() string {
	return s.path
}

// LoadAll returns every row in file order. It never fails: read errors are
// logged and yield an empty ledger.
func (s *Store) LoadAll() []domain.VideoRecord {
	t, err := readTable(s.path)
	if err != nil {
		s.log.Warn("Ledger unreadable, treating as empty",
			logger.String("path", s.path), logger.Error(err))
		return nil
	}
	return t.rows
}

// IndexBySession groups the stored identities by session number.
func (s *Store) IndexBySession() map[string]SessionIndex {
	index := make(map[string]SessionIndex)
	for _, rec := range s.LoadAll() {
		if rec.SessionNumber == "" {
			continue
		}
		entry, ok := index[rec.SessionNumber]
		if !ok {
			entry.Identities = make(map[domain.Identity]struct{})
		}
		entry.Count++
		entry.Identities[rec.Identity()] = struct{}{}
		index[rec.SessionNumber] = entry
	}
	return index
}

// PreservedFields returns the foreign fields of every stored row of session,
// keyed by slot. It must be read before the session's rows are deleted.
func (s *Store) PreservedFields(session string) map[domain.Slot]domain.Preserved {
	preserved := make(map[domain.Slot]domain.Preserved)
	for _, rec := range s.LoadAll() {
		if rec.SessionNumber != session {
			continue
		}
		slot := rec.Slot()
		// A published duplicate always beats an unpublished one.
		if prior, ok := preserved[slot]; ok && prior.ExternalID != "" && rec.ExternalID == "" {
			continue
		}
		preserved[slot] = rec.PreservedFields()
	}
	return preserved
}

// DeleteSession removes every row of session and returns how many were removed.
func (s *Store) DeleteSession(session string) (int, error) {
	removed := 0
	err := s.mutate("delete session "+session, func(t *table) error {
		removed = t.removeSession(session)
		return nil
	})
	return removed, err
}

// AppendRows adds rows, applying the preservation rule against preserved for
// each one. A row whose identity already exists replaces it, so the ledger
// keeps at most one row per identity.
func (s *Store) AppendRows(rows []domain.VideoRecord, preserved map[domain.Slot]domain.Preserved) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := s.now()
	err := s.mutate("append rows", func(t *table) error {
		for _, row := range rows {
			rec := t.keepPublication(domain.Preserve(row, preserved, now))
			t.addExtras(rec)
			t.upsert(rec)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ReplaceSession deletes the rows of session and inserts rows, which must be
// already merged, in a single atomic rewrite.
func (s *Store) ReplaceSession(session string, rows []domain.VideoRecord) error {
	for _, rec := range rows {
		if rec.SessionNumber != session {
			return fmt.Errorf("replace session %s: row %s belongs to another session", session, rec.Identity())
		}
	}
	return s.mutate("replace session "+session, func(t *table) error {
		t.removeSession(session)
		for _, rec := range rows {
			t.addExtras(rec)
			t.upsert(rec)
		}
		return nil
	})
}

// Pending returns the rows not yet published externally.
func (s *Store) Pending() []domain.VideoRecord {
	var pending []domain.VideoRecord
	for _, rec := range s.LoadAll() {
		if !rec.Published() {
			pending = append(pending, rec)
		}
	}
	return pending
}

// UpdatePublication writes the publication fields of one row and leaves every
// other field untouched. This is the only mutation path for the publishing
// pipeline.
func (s *Store) UpdatePublication(id domain.Identity, pub Publication) error {
	checked := pub.CheckedAt
	if checked.IsZero() {
		checked = s.now()
	}
	return s.mutate("update publication "+id.String(), func(t *table) error {
		for i := range t.rows {
			if t.rows[i].Identity() != id {
				continue
			}
			if pub.ExternalID != "" {
				t.rows[i].ExternalID = pub.ExternalID
			}
			t.rows[i].Status = pub.Status
			t.rows[i].FailureReason = pub.FailureReason
			t.rows[i].LastCheck = domain.FormatTimestamp(checked)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	})
}

// Stats counts rows by publication state.
func (s *Store) Stats() UploadStats {
	var st UploadStats
	for _, rec := range s.LoadAll() {
		st.Total++
		if rec.Published() {
			st.Published++
		} else {
			st.Unpublished++
		}
		switch strings.ToLower(rec.Status) {
		case domain.StatusSuccess:
			st.Success++
		case domain.StatusFailed:
			st.Failed++
		case domain.StatusPending:
			st.Pending++
		}
	}
	return st
}

// mutate runs one strict read-modify-write cycle.
func (s *Store) mutate(op string, fn func(*table) error) error {
	t, err := readTable(s.path)
	if err != nil {
		return &StoreError{Op: op, Path: s.path, Err: err}
	}
	if err := fn(t); err != nil {
		return err
	}
	if err := writeTable(s.path, t); err != nil {
		return &StoreError{Op: op, Path: s.path, Err: err}
	}
	return nil
}
