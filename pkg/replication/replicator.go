// Package replication mirrors the ledger into Postgres and MongoDB for
// downstream readers. Mirroring is one-way.
package replication

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"assembly-ledger/pkg/db"
	"assembly-ledger/pkg/domain"
	"assembly-ledger/pkg/logger"
)

// DocumentStore is the MongoDB side of the mirror. *db.Client satisfies it.
type DocumentStore interface {
	SaveRecords(ctx context.Context, docs []db.RecordDocument) (int64, error)
	DeleteExcept(ctx context.Context, keep []string) (int64, error)
}

// Config wires the replication dependencies. At least one target is required.
// The Postgres handle must already hold the video_record table, which
// db.PostgresClient and db.SupabaseClient create on Connect.
type Config struct {
	Postgres db.DBProvider
	Mongo    DocumentStore
	// Workers is the number of concurrent Postgres batches. Defaults to 4.
	Workers int
	// BatchSize is the number of sessions per Postgres transaction. Defaults to 50.
	BatchSize int
	Logger    logger.Logger
}

// Result counts what a replication run changed.
type Result struct {
	Rows            int
	Sessions        int
	PostgresWritten int
	PostgresPruned  int
	MongoWritten    int64
	MongoPruned     int64
}

// Replicator copies ledger rows into the configured mirrors.
type Replicator struct {
	pg        db.DBProvider
	mongo     DocumentStore
	workers   int
	batchSize int
	log       logger.Logger
}

// NewReplicator validates cfg and builds a replicator.
func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Postgres == nil && cfg.Mongo == nil {
		return nil, fmt.Errorf("at least one mirror (postgres or mongo) is required")
	}
	r := &Replicator{
		pg:        cfg.Postgres,
		mongo:     cfg.Mongo,
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
		log:       cfg.Logger,
	}
	if r.workers <= 0 {
		r.workers = 4
	}
	if r.batchSize <= 0 {
		r.batchSize = 50
	}
	if r.log == nil {
		r.log = logger.NewNop()
	}
	return r, nil
}

// Replicate makes every mirror hold exactly rows.
func (r *Replicator) Replicate(ctx context.Context, rows []domain.VideoRecord) (Result, error) {
	sessions := groupBySession(rows)
	res := Result{Rows: len(rows), Sessions: len(sessions)}

	if r.pg != nil {
		written, pruned, err := r.replicatePostgres(ctx, sessions)
		if err != nil {
			return res, fmt.Errorf("postgres mirror: %w", err)
		}
		res.PostgresWritten, res.PostgresPruned = written, pruned
	}

	if r.mongo != nil {
		written, pruned, err := r.replicateMongo(ctx, rows)
		if err != nil {
			return res, fmt.Errorf("mongo mirror: %w", err)
		}
		res.MongoWritten, res.MongoPruned = written, pruned
	}

	r.log.Info("Replication complete",
		logger.Int("rows", res.Rows),
		logger.Int("sessions", res.Sessions),
		logger.Int("postgres_written", res.PostgresWritten),
		logger.Int("postgres_pruned", res.PostgresPruned),
		logger.Int("mongo_written", int(res.MongoWritten)),
		logger.Int("mongo_pruned", int(res.MongoPruned)))
	return res, nil
}

// sessionRows holds the rows of one session in ledger order.
type sessionRows struct {
	number string
	rows   []domain.VideoRecord
}

func groupBySession(rows []domain.VideoRecord) []sessionRows {
	index := make(map[string]int)
	var out []sessionRows
	for _, rec := range rows {
		i, ok := index[rec.SessionNumber]
		if !ok {
			i = len(out)
			index[rec.SessionNumber] = i
			out = append(out, sessionRows{number: rec.SessionNumber})
		}
		out[i].rows = append(out[i].rows, rec)
	}
	return out
}

func (r *Replicator) replicateMongo(ctx context.Context, rows []domain.VideoRecord) (int64, int64, error) {
	docs := make([]db.RecordDocument, 0, len(rows))
	keep := make([]string, 0, len(rows))
	for _, rec := range rows {
		doc := db.NewRecordDocument(rec)
		docs = append(docs, doc)
		keep = append(keep, doc.ID)
	}

	written, err := r.mongo.SaveRecords(ctx, docs)
	if err != nil {
		return 0, 0, err
	}
	pruned, err := r.mongo.DeleteExcept(ctx, keep)
	if err != nil {
		return written, 0, err
	}
	return written, pruned, nil
}

// replicatePostgres replaces each session's rows in batches processed by a
// worker pool, then drops sessions the ledger no longer has.
func (r *Replicator) replicatePostgres(ctx context.Context, sessions []sessionRows) (int, int, error) {
	if r.pg.DB() == nil {
		return 0, 0, fmt.Errorf("postgres DB not connected")
	}

	existing, err := r.existingSessions(ctx)
	if err != nil {
		return 0, 0, err
	}

	written, err := r.processBatches(ctx, sessions)
	if err != nil {
		return written, 0, err
	}

	var stale []string
	live := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		live[s.number] = true
	}
	for number := range existing {
		if !live[number] {
			stale = append(stale, number)
		}
	}
	pruned, err := r.deleteSessionsTx(ctx, stale)
	if err != nil {
		return written, 0, err
	}
	return written, pruned, nil
}

func (r *Replicator) processBatches(ctx context.Context, sessions []sessionRows) (int, error) {
	type batchJob struct {
		batch      []sessionRows
		start, end int
	}
	type batchResult struct {
		written int
		err     error
	}

	numBatches := (len(sessions) + r.batchSize - 1) / r.batchSize
	jobs := make(chan batchJob, numBatches)
	results := make(chan batchResult, numBatches)

	for start := 0; start < len(sessions); start += r.batchSize {
		end := min(start+r.batchSize, len(sessions))
		jobs <- batchJob{batch: sessions[start:end], start: start, end: end}
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				written, err := r.replaceSessionsTx(ctx, job.batch)
				if err != nil {
					err = fmt.Errorf("batch [%d:%d]: %w", job.start, job.end, err)
				}
				results <- batchResult{written: written, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	total := 0
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		total += res.written
	}
	return total, firstErr
}

func (r *Replicator) existingSessions(ctx context.Context) (map[string]bool, error) {
	rows, err := r.pg.DB().QueryContext(ctx, `SELECT DISTINCT session_number FROM video_record`)
	if err != nil {
		return nil, fmt.Errorf("query existing sessions: %w", err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("scan session number: %w", err)
		}
		set[number] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return set, nil
}

// replaceSessionsTx rewrites the rows of a batch of sessions in one transaction.
func (r *Replicator) replaceSessionsTx(ctx context.Context, batch []sessionRows) (int, error) {
	tx, err := r.pg.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsertQuery = `
INSERT INTO video_record (
  session_number, session_date, page_url, agenda_url, provisional_transcript_url,
  final_transcript_url, attachment_url, video_id, video_date, video_time,
  stream_url, video_page_url, external_id, last_check, status, failure_reason
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (session_number, video_date, video_time) DO UPDATE SET
  session_date = EXCLUDED.session_date,
  page_url = EXCLUDED.page_url,
  agenda_url = EXCLUDED.agenda_url,
  provisional_transcript_url = EXCLUDED.provisional_transcript_url,
  final_transcript_url = EXCLUDED.final_transcript_url,
  attachment_url = EXCLUDED.attachment_url,
  video_id = EXCLUDED.video_id,
  stream_url = EXCLUDED.stream_url,
  video_page_url = EXCLUDED.video_page_url,
  external_id = EXCLUDED.external_id,
  last_check = EXCLUDED.last_check,
  status = EXCLUDED.status,
  failure_reason = EXCLUDED.failure_reason`

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, s := range batch {
		if _, err := tx.ExecContext(ctx, `DELETE FROM video_record WHERE session_number = $1`, s.number); err != nil {
			return 0, fmt.Errorf("clear session %s: %w", s.number, err)
		}
		for _, rec := range s.rows {
			if _, err := stmt.ExecContext(ctx,
				rec.SessionNumber, rec.SessionDate, rec.PageURL, rec.AgendaURL, rec.ProvisionalTranscriptURL,
				rec.FinalTranscriptURL, rec.AttachmentURL, rec.VideoID, rec.VideoDate, rec.VideoTime,
				rec.StreamURL, rec.VideoPageURL, rec.ExternalID, rec.LastCheck, rec.Status, rec.FailureReason,
			); err != nil {
				return 0, fmt.Errorf("upsert %s: %w", rec.Identity(), err)
			}
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (r *Replicator) deleteSessionsTx(ctx context.Context, numbers []string) (int, error) {
	if len(numbers) == 0 {
		return 0, nil
	}
	tx, err := r.pg.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	pruned := 0
	for _, number := range numbers {
		res, err := tx.ExecContext(ctx, `DELETE FROM video_record WHERE session_number = $1`, number)
		if err != nil {
			return 0, fmt.Errorf("prune session %s: %w", number, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		pruned += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.log.Info("Pruned sessions missing from the ledger", logger.Strings("sessions", numbers))
	return pruned, nil
}
