package replication

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"assembly-ledger/pkg/db"
	"assembly-ledger/pkg/domain"
)

// fakeDocumentStore keeps documents in memory keyed by id.
type fakeDocumentStore struct {
	docs    map[string]db.RecordDocument
	saveErr error
}

func (f *fakeDocumentStore) SaveRecords(ctx context.Context, docs []db.RecordDocument) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	if f.docs == nil {
		f.docs = make(map[string]db.RecordDocument)
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return int64(len(docs)), nil
}

func (f *fakeDocumentStore) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	live := make(map[string]bool, len(keep))
	for _, k := range keep {
		live[k] = true
	}
	var n int64
	for id := range f.docs {
		if !live[id] {
			delete(f.docs, id)
			n++
		}
	}
	return n, nil
}

func openSQL(t *testing.T) db.DBProvider {
	t.Helper()
	handle, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	handle.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = handle.Close() })
	require.NoError(t, db.EnsureSchema(context.Background(), handle))
	return db.SQLHandle{Handle: handle}
}

func row(session, date, clock, externalID string) domain.VideoRecord {
	return domain.VideoRecord{
		SessionNumber: session,
		SessionDate:   date,
		VideoID:       session + clock,
		VideoDate:     date,
		VideoTime:     clock,
		ExternalID:    externalID,
	}
}

func mirroredKeys(t *testing.T, p db.DBProvider) []string {
	t.Helper()
	rows, err := p.DB().Query(`SELECT session_number, video_date, video_time, external_id FROM video_record`)
	require.NoError(t, err)
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var s, d, tm, ext string
		require.NoError(t, rows.Scan(&s, &d, &tm, &ext))
		keys = append(keys, s+"|"+d+"|"+tm+"|"+ext)
	}
	require.NoError(t, rows.Err())
	sort.Strings(keys)
	return keys
}

func TestNewReplicator_RequiresATarget(t *testing.T) {
	_, err := NewReplicator(Config{})
	assert.Error(t, err)
}

func TestReplicate_PostgresMirrorsLedgerExactly(t *testing.T) {
	pg := openSQL(t)
	r, err := NewReplicator(Config{Postgres: pg, Workers: 1, BatchSize: 1})
	require.NoError(t, err)

	first := []domain.VideoRecord{
		row("100", "2025-11-04", "10:00", ""),
		row("100", "2025-11-04", "14:00", "yt-14"),
		row("101", "2025-11-05", "09:00", ""),
	}
	res, err := r.Replicate(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, 3, res.PostgresWritten)
	assert.Equal(t, 2, res.Sessions)

	second := []domain.VideoRecord{
		row("100", "2025-11-04", "10:00", "yt-10"),
		row("100", "2025-11-04", "14:00", "yt-14"),
		row("100", "2025-11-04", "17:30", ""),
	}
	res, err = r.Replicate(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, 3, res.PostgresWritten)
	assert.Equal(t, 1, res.PostgresPruned)

	assert.Equal(t, []string{
		"100|2025-11-04|10:00|yt-10",
		"100|2025-11-04|14:00|yt-14",
		"100|2025-11-04|17:30|",
	}, mirroredKeys(t, pg))
}

func TestReplicate_MongoUpsertsAndPrunes(t *testing.T) {
	store := &fakeDocumentStore{docs: map[string]db.RecordDocument{
		"99@2025-01-01 10:00": {ID: "99@2025-01-01 10:00"},
	}}
	r, err := NewReplicator(Config{Mongo: store})
	require.NoError(t, err)

	res, err := r.Replicate(context.Background(), []domain.VideoRecord{
		row("219", "2025-12-10", "11:30", "abc123"),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), res.MongoWritten)
	assert.Equal(t, int64(1), res.MongoPruned)
	require.Contains(t, store.docs, "219@2025-12-10 11:30")
	doc := store.docs["219@2025-12-10 11:30"]
	assert.Equal(t, "abc123", doc.ExternalID)
	assert.Equal(t, "219", doc.SessionNumber)
}

func TestReplicate_MongoErrorIsReturned(t *testing.T) {
	r, err := NewReplicator(Config{Mongo: &fakeDocumentStore{saveErr: errors.New("no primary")}})
	require.NoError(t, err)

	_, err = r.Replicate(context.Background(), []domain.VideoRecord{row("1", "2025-01-01", "10:00", "")})

	assert.ErrorContains(t, err, "mongo mirror")
}

func TestReplicate_PostgresNotConnected(t *testing.T) {
	r, err := NewReplicator(Config{Postgres: db.SQLHandle{}})
	require.NoError(t, err)

	_, err = r.Replicate(context.Background(), nil)

	assert.ErrorContains(t, err, "not connected")
}
