package normalize

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
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

func stagedRecord() StagedRecord {
	return StagedRecord{
		ManifestRecord: model.ManifestRecord{
			Numero:                 "1001",
			TipoManifesto:          "MTR",
			ResponsavelEmissao:     "ANA",
			DataEmissao:            "01/02/2024",
			DataRecebimento:        "05/02/2024",
			Situacao:               "Recebido",
			ResponsavelRecebimento: "BETO",
			Tratamento:             "Aterro",
			Residuos: []model.WasteLine{{
				Descricao:          "040101 - Couro (*)",
				Classe:             "Classe I",
				Unidade:            "Tonelada",
				QuantidadeIndicada: 1.5,
			}},
			Gerador:       model.Party{CpfCnpj: "12.345.678/0001-90", Nome: "ACME"},
			Transportador: model.Party{CpfCnpj: "98765432000110", Nome: "TRANSP XYZ"},
			Veiculo:       &model.Vehicle{Motorista: "JOSE", Placa: "abc1d23"},
			Destinador:    model.Party{CpfCnpj: "11222333000144", Nome: "DESTINO SA"},
		},
		CreatedBy: "worker-1",
		CreatedDt: time.Now(),
	}
}

func TestNormalizeOneInsertsNewManifest(t *testing.T) {
	mock := newMock(t)
	e := NewEngine(mock, Options{})
	rec := stagedRecord()

	mock.ExpectBegin()

	mock.ExpectExec(`INSERT INTO resilead.tipo_manifesto`).WithArgs("MTR").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id_tipo_manifesto FROM resilead.tipo_manifesto`).WithArgs("MTR").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(1))

	mock.ExpectExec(`INSERT INTO resilead.situacao`).WithArgs("Recebido").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id_situacao FROM resilead.situacao`).WithArgs("Recebido").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(2))

	mock.ExpectExec(`INSERT INTO resilead.tratamento`).WithArgs("Aterro").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id_tratamento FROM resilead.tratamento`).WithArgs("Aterro").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(3))

	mock.ExpectQuery(`SELECT id_entidade FROM resilead.entidade`).WithArgs("12345678000190").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectQuery(`SELECT id_entidade FROM resilead.entidade`).WithArgs("98765432000110").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery(`SELECT id_entidade FROM resilead.entidade`).WithArgs("11222333000144").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))

	mock.ExpectExec(`INSERT INTO resilead.tipo_entidade`).WithArgs(int64(10), "GERADOR").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO resilead.tipo_entidade`).WithArgs(int64(11), "TRANSPORTADOR").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO resilead.tipo_entidade`).WithArgs(int64(12), "DESTINADOR").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectQuery(`SELECT id_responsavel FROM resilead.entidade_responsavel`).
		WithArgs(int64(10), "EMISSAO", "ANA").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO resilead.entidade_responsavel`).
		WithArgs(int64(10), "ANA", "EMISSAO").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))

	mock.ExpectQuery(`SELECT id_responsavel FROM resilead.entidade_responsavel`).
		WithArgs(int64(12), "RECEBIMENTO", "BETO").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(101)))

	mock.ExpectQuery(`INSERT INTO resilead.registro`).
		WillReturnRows(pgxmock.NewRows([]string{"id_registro", "inserted"}).AddRow(int64(500), true))

	mock.ExpectExec(`INSERT INTO resilead.entidade_veiculo`).WithArgs(int64(11), "abc1d23").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT tipo_pessoa FROM resilead.entidade`).WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"tipo_pessoa"}).AddRow("J"))
	mock.ExpectQuery(`SELECT id_motorista FROM resilead.entidade_motorista`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO resilead.entidade_motorista`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectExec(`INSERT INTO resilead.residuo`).
		WithArgs("040101", "040101 - Couro (*)", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT codigo_classe FROM resilead.classe`).WithArgs("Classe I").
		WillReturnRows(pgxmock.NewRows([]string{"codigo"}).AddRow(7))
	mock.ExpectQuery(`SELECT codigo_unidade FROM resilead.unidade`).WithArgs("Tonelada").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT codigo_unidade FROM resilead.unidade`).WithArgs("Tonelada").
		WillReturnRows(pgxmock.NewRows([]string{"codigo"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO resilead.registro_residuo`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectCommit()

	require.NoError(t, e.normalizeOne(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeOneReprocessSkipsWasteLines(t *testing.T) {
	mock := newMock(t)
	e := NewEngine(mock, Options{})
	rec := stagedRecord()
	rec.Veiculo = nil
	rec.ResponsavelRecebimento = ""
	rec.Tratamento = ""

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO resilead.tipo_manifesto`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id_tipo_manifesto`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO resilead.situacao`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id_situacao`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(2))

	for _, id := range []int64{10, 11, 12} {
		mock.ExpectQuery(`SELECT id_entidade`).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	}
	for range 3 {
		mock.ExpectExec(`INSERT INTO resilead.tipo_entidade`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectQuery(`SELECT id_responsavel`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))

	// conflict path: existing manifest refreshed, waste lines untouched
	mock.ExpectQuery(`INSERT INTO resilead.registro`).
		WillReturnRows(pgxmock.NewRows([]string{"id_registro", "inserted"}).AddRow(int64(500), false))
	mock.ExpectCommit()

	require.NoError(t, e.normalizeOne(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeOneMissingEntity(t *testing.T) {
	mock := newMock(t)
	e := NewEngine(mock, Options{})
	rec := stagedRecord()
	rec.Tratamento = ""

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO resilead.tipo_manifesto`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id_tipo_manifesto`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO resilead.situacao`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id_situacao`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery(`SELECT id_entidade`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := e.normalizeOne(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMissingEntity))
}

func TestMoveToHistory(t *testing.T) {
	mock := newMock(t)
	e := NewEngine(mock, Options{})
	rec := stagedRecord()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sinir.mtr_history`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM sinir.mtr`).WithArgs("1001").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, e.moveToHistory(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuarantineTruncatesError(t *testing.T) {
	mock := newMock(t)
	e := NewEngine(mock, Options{})
	rec := stagedRecord()

	longErr := eris.New(strings.Repeat("x", 5000))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sinir.mtr_quarantine`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM sinir.mtr`).WithArgs("1001").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, e.quarantine(context.Background(), rec, longErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseDate(t *testing.T) {
	d := ParseDate("05/02/2024")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC), *d)

	d = ParseDate("2024-02-05")
	require.NotNil(t, d)
	assert.Equal(t, 5, d.Day())

	d = ParseDate("5/2/2024 13:45:00")
	require.NotNil(t, d)
	assert.Equal(t, 13, d.Hour())

	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("sem data"))
}
