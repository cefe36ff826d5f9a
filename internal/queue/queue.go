// Package queue is the Postgres-backed work queue for report downloads.
//
// Rows are keyed by URL. A worker claims a row with a single conditional
// UPDATE, so two workers can never hold the same job. Finished jobs are
// deleted; failed jobs stay in ERROR with the failure message and are only
// retried when a later setup run re-enqueues the URL after the row is
// cleared by an operator.
package queue

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/resilead/sinir-cli/internal/db"
	"github.com/resilead/sinir-cli/internal/model"
)

// Queue persists and claims fetch jobs.
type Queue struct {
	pool db.Pool
}

// New wraps a pool.
func New(pool db.Pool) *Queue {
	return &Queue{pool: pool}
}

// Enqueue inserts jobs, silently skipping URLs already present in any state.
// Returns the number of rows actually inserted.
func (q *Queue) Enqueue(ctx context.Context, unidade, createdBy string, urls []string) (int, error) {
	inserted := 0
	for _, u := range urls {
		tag, err := q.pool.Exec(ctx, `
			INSERT INTO sinir.mtr_load (url, unidade, status, created_by)
			VALUES ($1, $2, 'PENDING', $3)
			ON CONFLICT (url) DO NOTHING`,
			u, unidade, createdBy)
		if err != nil {
			return inserted, eris.Wrapf(err, "queue: enqueue %s", u)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListPending returns up to limit PENDING jobs, oldest first.
func (q *Queue) ListPending(ctx context.Context, limit int) ([]model.FetchJob, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT url, unidade, status, created_by, created_dt
		FROM sinir.mtr_load
		WHERE status = 'PENDING'
		ORDER BY created_dt
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "queue: list pending")
	}
	defer rows.Close()

	var jobs []model.FetchJob
	for rows.Next() {
		var j model.FetchJob
		if err := rows.Scan(&j.URL, &j.Unidade, &j.Status, &j.CreatedBy, &j.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "queue: scan pending row")
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "queue: iterate pending rows")
	}
	return jobs, nil
}

// Claim atomically moves a PENDING job to PROCESSING for workerID. Returns
// false when the job was already taken, finished or failed by someone else.
func (q *Queue) Claim(ctx context.Context, url, workerID string) (bool, error) {
	tag, err := q.pool.Exec(ctx, `
		UPDATE sinir.mtr_load
		SET status = 'PROCESSING', locked_by = $1, locked_at = now()
		WHERE url = $2 AND status = 'PENDING'`,
		workerID, url)
	if err != nil {
		return false, eris.Wrapf(err, "queue: claim %s", url)
	}
	return tag.RowsAffected() == 1, nil
}

// Complete removes a finished job.
func (q *Queue) Complete(ctx context.Context, url string) error {
	if _, err := q.pool.Exec(ctx,
		`DELETE FROM sinir.mtr_load WHERE url = $1`, url); err != nil {
		return eris.Wrapf(err, "queue: complete %s", url)
	}
	return nil
}

// Fail marks a job ERROR with the failure description.
func (q *Queue) Fail(ctx context.Context, url, lastError string) error {
	if _, err := q.pool.Exec(ctx, `
		UPDATE sinir.mtr_load
		SET status = 'ERROR', last_error = $1
		WHERE url = $2`,
		lastError, url); err != nil {
		return eris.Wrapf(err, "queue: fail %s", url)
	}
	return nil
}

// Counts summarizes queue state for the status report.
type Counts struct {
	Pending    int64
	Processing int64
	Errored    int64
	Stuck      int64
}

// Counts reports per-status totals plus PROCESSING rows older than
// stuckAfter, which likely belong to a dead worker.
func (q *Queue) Counts(ctx context.Context, stuckAfter time.Duration) (Counts, error) {
	var c Counts
	err := q.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'PENDING'),
			count(*) FILTER (WHERE status = 'PROCESSING'),
			count(*) FILTER (WHERE status = 'ERROR'),
			count(*) FILTER (WHERE status = 'PROCESSING' AND locked_at < now() - $1::interval)
		FROM sinir.mtr_load`,
		stuckAfter.String()).Scan(&c.Pending, &c.Processing, &c.Errored, &c.Stuck)
	if err != nil {
		return c, eris.Wrap(err, "queue: counts")
	}
	return c, nil
}
