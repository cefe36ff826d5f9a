package harvest

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resilead/sinir-cli/internal/model"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestListStakeholders(t *testing.T) {
	mock := newMock(t)
	s := NewStore(mock)

	final := time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT unidade, cpf_cnpj, nome, data_inicial, data_final`).
		WillReturnRows(pgxmock.NewRows([]string{"unidade", "cpf_cnpj", "nome", "data_inicial", "data_final"}).
			AddRow("5001", "12345678000190", "ACME", nil, &final).
			AddRow("5002", "98765432000110", "TRANSP", nil, nil))

	out, err := s.ListStakeholders(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].DataFinal)
	assert.Equal(t, final, *out[0].DataFinal)
	assert.Nil(t, out[1].DataFinal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStakeholderRange(t *testing.T) {
	mock := newMock(t)
	s := NewStore(mock)

	start := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE sinir.stakeholder`).
		WithArgs(start, end, "5001", "12345678000190").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateStakeholderRange(context.Background(), "5001", "12345678000190", start, end))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStageManifestsUpserts(t *testing.T) {
	mock := newMock(t)
	s := NewStore(mock)

	rec := manifestFor("1001", "5001")
	rec.Veiculo = &model.Vehicle{Motorista: "JOSE", Placa: "ABC1D23"}

	mock.ExpectExec(`INSERT INTO sinir.mtr`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.StageManifests(context.Background(), []model.ManifestRecord{rec}, "worker-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDiscoveredStakeholdersCountsNewRows(t *testing.T) {
	mock := newMock(t)
	s := NewStore(mock)

	mock.ExpectExec(`INSERT INTO sinir.stakeholder`).
		WithArgs("7002", "98765432000110", "TRANSP", "system").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO sinir.stakeholder`).
		WithArgs("7003", "11222333000144", "DESTINO", "system").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	n, err := s.InsertDiscoveredStakeholders(context.Background(), []model.Stakeholder{
		{Unidade: "7002", CpfCnpj: "98765432000110", Nome: "TRANSP"},
		{Unidade: "7003", CpfCnpj: "11222333000144", Nome: "DESTINO"},
	}, "system")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
