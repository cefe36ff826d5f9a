package harvest

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	calls map[string][]string
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, unidade, _ string, urls []string) (int, error) {
	if e.calls == nil {
		e.calls = make(map[string][]string)
	}
	e.calls[unidade] = append(e.calls[unidade], urls...)
	return len(urls), nil
}

func TestSetupPlansOnlyUncoveredUnits(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	q := &fakeEnqueuer{}

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	covered := time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)
	behind := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT unidade, cpf_cnpj, nome, data_inicial, data_final`).
		WillReturnRows(pgxmock.NewRows([]string{"unidade", "cpf_cnpj", "nome", "data_inicial", "data_final"}).
			AddRow("5001", "12345678000190", "ACME", nil, &covered).
			AddRow("5002", "98765432000110", "TRANSP", nil, &behind))

	// only 5002 needs windows: Mar 1 through Mar 9, one month, three URLs
	mock.ExpectExec(`UPDATE sinir.stakeholder`).
		WithArgs(
			time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC),
			"5002", "98765432000110").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	total, err := Setup(context.Background(), store, q, now)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, q.calls["5001"])
	assert.Len(t, q.calls["5002"], 3)
	for _, url := range q.calls["5002"] {
		assert.Contains(t, url, "/01-03-2024/09-03-2024/")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
