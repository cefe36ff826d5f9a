package queue

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestEnqueueSkipsDuplicates(t *testing.T) {
	mock := newMock(t)
	q := New(mock)

	mock.ExpectExec(`INSERT INTO sinir.mtr_load`).
		WithArgs("http://a/1", "55", "setup").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO sinir.mtr_load`).
		WithArgs("http://a/2", "55", "setup").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	n, err := q.Enqueue(context.Background(), "55", "setup", []string{"http://a/1", "http://a/2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingOrdersOldestFirst(t *testing.T) {
	mock := newMock(t)
	q := New(mock)

	now := time.Now()
	mock.ExpectQuery(`SELECT url, unidade, status, created_by, created_dt`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"url", "unidade", "status", "created_by", "created_dt"}).
			AddRow("http://a/1", "55", "PENDING", "setup", now.Add(-time.Hour)).
			AddRow("http://a/2", "55", "PENDING", "setup", now))

	jobs, err := q.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "http://a/1", jobs[0].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimWinsOnlyWhenPending(t *testing.T) {
	mock := newMock(t)
	q := New(mock)

	mock.ExpectExec(`UPDATE sinir.mtr_load`).
		WithArgs("worker-1", "http://a/1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := q.Claim(context.Background(), "http://a/1", "worker-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE sinir.mtr_load`).
		WithArgs("worker-2", "http://a/1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err = q.Claim(context.Background(), "http://a/1", "worker-2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteDeletesRow(t *testing.T) {
	mock := newMock(t)
	q := New(mock)

	mock.ExpectExec(`DELETE FROM sinir.mtr_load`).
		WithArgs("http://a/1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, q.Complete(context.Background(), "http://a/1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailRecordsError(t *testing.T) {
	mock := newMock(t)
	q := New(mock)

	mock.ExpectExec(`UPDATE sinir.mtr_load`).
		WithArgs("fetch: non-success status", "http://a/1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, q.Fail(context.Background(), "http://a/1", "fetch: non-success status"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	mock := newMock(t)
	q := New(mock)

	mock.ExpectQuery(`SELECT`).
		WithArgs("1h0m0s").
		WillReturnRows(pgxmock.NewRows([]string{"pending", "processing", "errored", "stuck"}).
			AddRow(int64(12), int64(3), int64(1), int64(2)))

	c, err := q.Counts(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(12), c.Pending)
	assert.Equal(t, int64(2), c.Stuck)
	assert.NoError(t, mock.ExpectationsWereMet())
}
