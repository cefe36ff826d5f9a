package parser

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func workbookBytes(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, row := range rows {
			r := sheet.AddRow()
			for _, v := range row {
				r.AddCell().SetString(v)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

var reportHeader = []string{
	"Nº MTR", "Tipo de Manifesto", "Responsável Emissão", "Data de Emissão",
	"Data de Recebimento", "Situação", "Tratamento", "Resíduo Cód/Descrição",
	"Classe", "Unidade", "Quantidade Indicada", "Quantidade Recebida",
	"Gerador (Unidade)", "Gerador (CNPJ/CPF)", "Gerador (Nome)",
	"Transportador (Unidade)", "Transportador (CNPJ/CPF)", "Transportador (Nome)",
	"Nome Motorista", "Placa Veículo",
	"Destinador (Unidade)", "Destinador (CNPJ/CPF)", "Destinador (Nome)",
}

func reportRow(numero, residuo, qtd, motorista, placa string) []string {
	return []string{
		numero, "MTR", "ACME LTDA", "01/02/2024",
		"05/02/2024", "Recebido", "Aterro", residuo,
		"Classe I", "Tonelada", qtd, "",
		"5001", "12.345.678/0001-90", "ACME LTDA",
		"5002", "98.765.432/0001-10", "TRANSP XYZ",
		motorista, placa,
		"5003", "11.222.333/0001-44", "DESTINO SA",
	}
}

func TestParseGroupsRowsByManifestNumber(t *testing.T) {
	data := workbookBytes(t, map[string][][]string{
		"Relatório": {
			reportHeader,
			reportRow("1001", "040101 - Residuo A (*)", "1,5", "JOSE", "ABC1D23"),
			reportRow("1001", "040102 - Residuo B", "2,0", "JOSE", "ABC1D23"),
			reportRow("1002", "040101 - Residuo A (*)", "0,7", "", ""),
		},
	})

	records := New(nil).Parse(data)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "1001", first.Numero)
	assert.Equal(t, "MTR", first.TipoManifesto)
	assert.Equal(t, "Recebido", first.Situacao)
	require.Len(t, first.Residuos, 2)
	assert.Equal(t, 1.5, first.Residuos[0].QuantidadeIndicada)
	assert.Equal(t, 2.0, first.Residuos[1].QuantidadeIndicada)
	require.NotNil(t, first.Veiculo)
	assert.Equal(t, "JOSE", first.Veiculo.Motorista)
	assert.Equal(t, "ABC1D23", first.Veiculo.Placa)

	second := records[1]
	assert.Equal(t, "1002", second.Numero)
	require.Len(t, second.Residuos, 1)
	assert.Nil(t, second.Veiculo)
	assert.Equal(t, "12.345.678/0001-90", second.Gerador.CpfCnpj)
	assert.Equal(t, "11.222.333/0001-44", second.Destinador.CpfCnpj)
}

func TestParseSkipsBannerRowsAboveHeader(t *testing.T) {
	data := workbookBytes(t, map[string][][]string{
		"Relatório": {
			{"Relatório Analítico de Manifestos"},
			{"Emitido em 01/03/2024"},
			reportHeader,
			reportRow("2001", "010203 - Residuo C", "3", "", ""),
		},
	})

	records := New(nil).Parse(data)
	require.Len(t, records, 1)
	assert.Equal(t, "2001", records[0].Numero)
}

func TestParsePicksLargestSheet(t *testing.T) {
	data := workbookBytes(t, map[string][][]string{
		"Legenda": {
			{"Situação", "Significado"},
			{"Recebido", "MTR recebido pelo destinador"},
		},
		"Dados": {
			reportHeader,
			reportRow("3001", "040101 - Residuo A", "1", "", ""),
			reportRow("3002", "040101 - Residuo A", "1", "", ""),
		},
	})

	records := New(nil).Parse(data)
	require.Len(t, records, 2)
}

func TestParseResolvesVariantHeaders(t *testing.T) {
	header := make([]string, len(reportHeader))
	copy(header, reportHeader)
	header[0] = "NUMERO MTR"
	header[3] = "dataemissao"

	data := workbookBytes(t, map[string][][]string{
		"Plan1": {header, reportRow("4001", "040101 - X", "1", "", "")},
	})

	records := New(nil).Parse(data)
	require.Len(t, records, 1)
	assert.Equal(t, "4001", records[0].Numero)
	assert.Equal(t, "01/02/2024", records[0].DataEmissao)
}

func TestParseConfigVariantOverride(t *testing.T) {
	header := make([]string, len(reportHeader))
	copy(header, reportHeader)
	header[0] = "Identificador do Documento"

	data := workbookBytes(t, map[string][][]string{
		"Plan1": {header, reportRow("5001", "040101 - X", "1", "", "")},
	})

	records := New(map[string][]string{
		FieldNumero: {"Identificador do Documento"},
	}).Parse(data)
	require.Len(t, records, 1)
	assert.Equal(t, "5001", records[0].Numero)
}

func TestParseSkipsBlankManifestNumbers(t *testing.T) {
	data := workbookBytes(t, map[string][][]string{
		"Plan1": {
			reportHeader,
			reportRow("", "040101 - X", "1", "", ""),
			reportRow("6001", "040101 - X", "1", "", ""),
		},
	})

	records := New(nil).Parse(data)
	require.Len(t, records, 1)
	assert.Equal(t, "6001", records[0].Numero)
}

func TestParseCorruptInputYieldsEmpty(t *testing.T) {
	assert.Empty(t, New(nil).Parse([]byte("not a workbook")))
	assert.Empty(t, New(nil).Parse(nil))
}

func TestParseQuantityLocales(t *testing.T) {
	assert.Equal(t, 1.5, parseQuantity("1,5"))
	assert.Equal(t, 2.25, parseQuantity("2.25"))
	assert.Equal(t, 0.0, parseQuantity("n/a"))
	assert.Nil(t, parseNullableQuantity(""))
	v := parseNullableQuantity("0,0")
	require.NotNil(t, v)
	assert.Equal(t, 0.0, *v)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "situacao", normalizeKey("Situação"))
	assert.Equal(t, "numeromtr", normalizeKey("Número  MTR"))
	assert.Equal(t, "residuocoddescricao", normalizeKey("Resíduo Cód/Descrição"))
	assert.Equal(t, normalizeKey("Nº MTR"), normalizeKey("nº mtr"))
}
