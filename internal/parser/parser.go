// Package parser extracts manifest records from downloaded report
// spreadsheets.
//
// Report layout drifts over time: sheet names change, banner rows precede
// the header, header spellings vary. The parser is defensive throughout and
// never fails a batch over a bad workbook; anything unreadable parses to an
// empty record list.
package parser

import (
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/model"
)

// headerScanRows bounds the banner-row scan.
const headerScanRows = 20

// headerHints score candidate header rows. A cell counts when its
// normalized text contains any hint.
var headerHints = []string{
	"numero", "mtr", "tipo", "emissao", "situacao",
	"gerador", "transportador", "destinador", "cpf", "cnpj", "residuo",
}

// Parser turns raw workbook bytes into manifest records.
type Parser struct {
	overrides map[string][]string
	logger    *zap.Logger
}

// New builds a parser. overrides extends the header variant table per
// logical field (config `parser.column_variants`); nil uses the defaults.
func New(overrides map[string][]string) *Parser {
	return &Parser{
		overrides: overrides,
		logger:    zap.L().With(zap.String("component", "parser")),
	}
}

// Parse extracts manifest records from workbook bytes. Rows sharing a
// manifest number merge into one record: the first row's header fields win
// and every row contributes a waste line. Unreadable input yields an empty
// slice, never an error.
func (p *Parser) Parse(data []byte) []model.ManifestRecord {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		p.logger.Warn("unreadable workbook", zap.Error(err))
		return nil
	}

	sheet := largestSheet(f)
	if sheet == nil {
		return nil
	}
	grid := sheetGrid(sheet)
	if len(grid) == 0 {
		return nil
	}

	headerIdx := detectHeaderRow(grid)
	cols := newColumnMap(grid[headerIdx], p.overrides)

	var records []model.ManifestRecord
	indexByNumero := make(map[string]int)

	for r := headerIdx + 1; r < len(grid); r++ {
		row := grid[r]
		cell := func(field string) string {
			idx := cols.resolve(field)
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		numero := cell(FieldNumero)
		if numero == "" {
			continue
		}

		line := model.WasteLine{
			CodigoInterno:      cell(FieldResiduoCodigoInterno),
			Descricao:          cell(FieldResiduoDescricao),
			DescricaoInterna:   cell(FieldResiduoDescricaoInterna),
			Classe:             cell(FieldResiduoClasse),
			Unidade:            cell(FieldResiduoUnidade),
			QuantidadeIndicada: parseQuantity(cell(FieldResiduoQtdIndicada)),
			QuantidadeRecebida: parseNullableQuantity(cell(FieldResiduoQtdRecebida)),
		}

		if idx, ok := indexByNumero[numero]; ok {
			records[idx].Residuos = append(records[idx].Residuos, line)
			continue
		}

		rec := model.ManifestRecord{
			Numero:                 numero,
			TipoManifesto:          cell(FieldTipoManifesto),
			ResponsavelEmissao:     cell(FieldResponsavelEmissao),
			TemMtrComplementar:     cell(FieldTemMtrComplementar),
			NumeroMtrProvisorio:    cell(FieldNumeroMtrProvisorio),
			DataEmissao:            cell(FieldDataEmissao),
			DataRecebimento:        cell(FieldDataRecebimento),
			Situacao:               cell(FieldSituacao),
			ResponsavelRecebimento: cell(FieldResponsavelRecebimento),
			Justificativa:          cell(FieldJustificativa),
			Tratamento:             cell(FieldTratamento),
			NumeroCdf:              cell(FieldNumeroCdf),
			Residuos:               []model.WasteLine{line},
			Gerador: model.Party{
				Unidade:    cell(FieldGeradorUnidade),
				CpfCnpj:    cell(FieldGeradorCpfCnpj),
				Nome:       cell(FieldGeradorNome),
				Observacao: cell(FieldGeradorObs),
			},
			Transportador: model.Party{
				Unidade: cell(FieldTransportadorUnidade),
				CpfCnpj: cell(FieldTransportadorCpfCnpj),
				Nome:    cell(FieldTransportadorNome),
			},
			Destinador: model.Party{
				Unidade:    cell(FieldDestinadorUnidade),
				CpfCnpj:    cell(FieldDestinadorCpfCnpj),
				Nome:       cell(FieldDestinadorNome),
				Observacao: cell(FieldDestinadorObs),
			},
		}
		if mot, placa := cell(FieldMotorista), cell(FieldPlaca); mot != "" || placa != "" {
			rec.Veiculo = &model.Vehicle{Motorista: mot, Placa: placa}
		}

		records = append(records, rec)
		indexByNumero[numero] = len(records) - 1
	}

	p.logger.Debug("parsed workbook",
		zap.String("sheet", sheet.Name),
		zap.Int("header_row", headerIdx),
		zap.Int("records", len(records)))
	return records
}

// largestSheet picks the sheet with the biggest row*column extent; small
// legend or summary sheets lose to the data sheet.
func largestSheet(f *xlsx.File) *xlsx.Sheet {
	var best *xlsx.Sheet
	bestExtent := -1
	for _, s := range f.Sheets {
		extent := s.MaxRow * s.MaxCol
		if extent > bestExtent {
			best = s
			bestExtent = extent
		}
	}
	return best
}

func sheetGrid(sheet *xlsx.Sheet) [][]string {
	grid := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		grid = append(grid, cells)
	}
	return grid
}

// detectHeaderRow scores the first rows by hint matches and returns the best
// scoring index, so banner and title rows above the real header are skipped.
func detectHeaderRow(grid [][]string) int {
	best, bestScore := 0, -1
	limit := len(grid)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for r := 0; r < limit; r++ {
		score := 0
		for _, cell := range grid[r] {
			v := strings.TrimSpace(cell)
			if v == "" {
				continue
			}
			nv := normalizeKey(v)
			for _, h := range headerHints {
				if strings.Contains(nv, h) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	return best
}

// parseQuantity accepts both decimal comma and decimal point; unparseable
// values count as zero.
func parseQuantity(s string) float64 {
	if v := parseNullableQuantity(s); v != nil {
		return *v
	}
	return 0
}

func parseNullableQuantity(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
