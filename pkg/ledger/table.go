package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"assembly-ledger/pkg/domain"
)

// table is the in-memory image of the ledger file for one read-modify-write
// cycle. No handle is kept open between cycles.
type table struct {
	extras []string
	rows   []domain.VideoRecord
}

// readHeader returns the header of the file, or nil when the file is missing
// or empty.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return cleanHeader(header), nil
}

// readTable loads the whole file. A missing file is an empty table.
func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &table{}, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return &table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = cleanHeader(header)

	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	t := &table{extras: extraColumns(header)}
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}
		get := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimRight(record[i], "\r")
		}
		t.rows = append(t.rows, recordFromRow(get, t.extras))
	}
	return t, nil
}

// writeTable replaces the file atomically: the table is written to a temp file
// in the same directory, synced, then renamed over the original.
func writeTable(path string, t *table) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	header := append(append([]string{}, Columns...), t.extras...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range t.rows {
		if err := w.Write(rowFromRecord(rec, t.extras)); err != nil {
			return fmt.Errorf("write row %s: %w", rec.Identity(), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// find returns the index of the row with identity id, or -1.
func (t *table) find(id domain.Identity) int {
	for i := range t.rows {
		if t.rows[i].Identity() == id {
			return i
		}
	}
	return -1
}

// upsert inserts rec, replacing an existing row with the same identity in
// place. It returns true when a row was replaced.
func (t *table) upsert(rec domain.VideoRecord) bool {
	if i := t.find(rec.Identity()); i >= 0 {
		t.rows[i] = rec
		return true
	}
	t.rows = append(t.rows, rec)
	return false
}

// keepPublication copies the publication fields of the stored row with rec's
// identity into rec when that row is published and rec is not.
func (t *table) keepPublication(rec domain.VideoRecord) domain.VideoRecord {
	if rec.ExternalID != "" {
		return rec
	}
	i := t.find(rec.Identity())
	if i < 0 || t.rows[i].ExternalID == "" {
		return rec
	}
	stored := t.rows[i]
	rec.ExternalID = stored.ExternalID
	rec.Status = stored.Status
	rec.FailureReason = stored.FailureReason
	rec.LastCheck = stored.LastCheck
	return rec
}

// removeSession drops every row of session and returns how many were removed.
func (t *table) removeSession(session string) int {
	kept := t.rows[:0]
	removed := 0
	for _, rec := range t.rows {
		if rec.SessionNumber == session {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	t.rows = kept
	return removed
}

func (t *table) addExtras(rec domain.VideoRecord) {
	for name := range rec.Extra {
		if knownColumns[name] {
			continue
		}
		found := false
		for _, e := range t.extras {
			if e == name {
				found = true
				break
			}
		}
		if !found {
			t.extras = append(t.extras, name)
		}
	}
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = h
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
