package parser

import "strings"

// Logical field names for the report columns. Each maps to an ordered list
// of header variants; order matters because resolution is first-match.
const (
	FieldNumero                 = "numero"
	FieldTipoManifesto          = "tipo_manifesto"
	FieldResponsavelEmissao     = "responsavel_emissao"
	FieldTemMtrComplementar     = "tem_mtr_complementar"
	FieldNumeroMtrProvisorio    = "numero_mtr_provisorio"
	FieldDataEmissao            = "data_emissao"
	FieldDataRecebimento        = "data_recebimento"
	FieldSituacao               = "situacao"
	FieldResponsavelRecebimento = "responsavel_recebimento"
	FieldJustificativa          = "justificativa"
	FieldTratamento             = "tratamento"
	FieldNumeroCdf              = "numero_cdf"

	FieldResiduoCodigoInterno    = "residuo_codigo_interno"
	FieldResiduoDescricao        = "residuo_descricao"
	FieldResiduoDescricaoInterna = "residuo_descricao_interna"
	FieldResiduoClasse           = "residuo_classe"
	FieldResiduoUnidade          = "residuo_unidade"
	FieldResiduoQtdIndicada      = "residuo_qtd_indicada"
	FieldResiduoQtdRecebida      = "residuo_qtd_recebida"

	FieldGeradorUnidade = "gerador_unidade"
	FieldGeradorCpfCnpj = "gerador_cpf_cnpj"
	FieldGeradorNome    = "gerador_nome"
	FieldGeradorObs     = "gerador_obs"

	FieldTransportadorUnidade = "transportador_unidade"
	FieldTransportadorCpfCnpj = "transportador_cpf_cnpj"
	FieldTransportadorNome    = "transportador_nome"
	FieldMotorista            = "motorista"
	FieldPlaca                = "placa"

	FieldDestinadorUnidade = "destinador_unidade"
	FieldDestinadorCpfCnpj = "destinador_cpf_cnpj"
	FieldDestinadorNome    = "destinador_nome"
	FieldDestinadorObs     = "destinador_obs"
)

// defaultColumnVariants covers every header spelling the upstream report has
// shipped so far. Entries can be extended per field via parser config.
var defaultColumnVariants = map[string][]string{
	FieldNumero: {"Nº MTR", "N° MTR", "NumeroMtr", "Numero MTR", "Número MTR",
		"Numero do Manifesto", "Número do Manifesto", "Numero", "Número"},
	FieldTipoManifesto:      {"TipoManifesto", "Tipo de Manifesto", "Tipo"},
	FieldResponsavelEmissao: {"Responsável Emissão", "ResponsavelEmissao", "Responsavel Emissao", "Responsável pela Emissão"},
	FieldTemMtrComplementar: {"Tem MTR Complementar", "TemMtrComplementar"},
	FieldNumeroMtrProvisorio: {"MTR Provisório Nº", "NumeroMtrProvisorio",
		"Numero MTR Provisorio", "Número MTR Provisório"},
	FieldDataEmissao:            {"DataEmissao", "Data de Emissao", "Data de Emissão"},
	FieldDataRecebimento:        {"DataRecebimento", "Data de Recebimento"},
	FieldSituacao:               {"Situacao", "Situação"},
	FieldResponsavelRecebimento: {"Responsável Recebimento", "ResponsavelRecebimento", "Responsavel Recebimento", "Responsável pelo Recebimento"},
	FieldJustificativa:          {"Justificativa"},
	FieldTratamento:             {"Tratamento"},
	FieldNumeroCdf:              {"CDF Nº", "NumeroCdf", "Numero CDF", "Número CDF"},

	FieldResiduoCodigoInterno:    {"Residuo_CodigoInterno", "CodigoInterno", "Codigo Interno", "Cód Interno"},
	FieldResiduoDescricao:        {"Resíduo Cód/Descrição", "Residuo_Descricao", "Descricao", "Descrição"},
	FieldResiduoDescricaoInterna: {"Descr. interna", "Residuo_DescricaoInterna", "DescricaoInterna", "Descrição Interna"},
	FieldResiduoClasse:           {"Residuo_Classe", "Classe"},
	FieldResiduoUnidade:          {"Residuo_Unidade", "Unidade"},
	FieldResiduoQtdIndicada:      {"Residuo_QtdIndicada", "QtdIndicada", "Quantidade Indicada"},
	FieldResiduoQtdRecebida:      {"Residuo_QtdRecebida", "QtdRecebida", "Quantidade Recebida"},

	FieldGeradorUnidade: {"Gerador (Unidade)", "Gerador_Unidade", "Gerador_UnidadeFederativa", "Gerador UF", "Gerador Unidade"},
	FieldGeradorCpfCnpj: {"Gerador (CNPJ/CPF)", "Gerador_CpfCnpj", "Gerador_Cpf", "Gerador Cpf/Cnpj"},
	FieldGeradorNome:    {"Gerador (Nome)", "Gerador_Nome", "Gerador Nome"},
	FieldGeradorObs:     {"Observação Gerador", "Gerador_Obs", "Gerador Observacao", "Gerador Observação"},

	FieldTransportadorUnidade: {"Transportador (Unidade)", "Transportador_Unidade", "Transportador UF", "Transportador Unidade"},
	FieldTransportadorCpfCnpj: {"Transportador (CNPJ/CPF)", "Transportador_CpfCnpj", "Transportador Cpf/Cnpj"},
	FieldTransportadorNome:    {"Transportador (Nome)", "Transportador_Nome", "Transportador Nome"},
	FieldMotorista:            {"Nome Motorista", "Transportador_Motorista", "Motorista"},
	FieldPlaca:                {"Placa Veículo", "Transportador_Placa", "Placa"},

	FieldDestinadorUnidade: {"Destinador (Unidade)", "Destinador_Unidade", "Destinador UF", "Destinador Unidade"},
	FieldDestinadorCpfCnpj: {"Destinador (CNPJ/CPF)", "Destinador_CpfCnpj", "Destinador Cpf/Cnpj"},
	FieldDestinadorNome:    {"Destinador (Nome)", "Destinador_Nome", "Destinador Nome"},
	FieldDestinadorObs:     {"Observação Destinador", "Destinador_Obs", "Destinador Observacao", "Destinador Observação"},
}

// columnMap resolves logical fields to column indexes against one header row.
type columnMap struct {
	// byHeader keeps first-seen index per exact header text.
	byHeader map[string]int
	// byNormalized keeps first-seen index per normalized header, preserving
	// left-to-right order for substring fallback.
	normKeys   []string
	byNorm     map[string]int
	variants   map[string][]string
	fieldCache map[string]int
}

func newColumnMap(header []string, overrides map[string][]string) *columnMap {
	m := &columnMap{
		byHeader:   make(map[string]int),
		byNorm:     make(map[string]int),
		variants:   make(map[string][]string, len(defaultColumnVariants)),
		fieldCache: make(map[string]int),
	}
	for field, names := range defaultColumnVariants {
		m.variants[field] = names
	}
	for field, names := range overrides {
		m.variants[field] = append(append([]string{}, names...), m.variants[field]...)
	}
	for i, raw := range header {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		if _, ok := m.byHeader[key]; !ok {
			m.byHeader[key] = i
		}
		nk := normalizeKey(key)
		if _, ok := m.byNorm[nk]; !ok {
			m.byNorm[nk] = i
			m.normKeys = append(m.normKeys, nk)
		}
	}
	return m
}

// resolve finds the column index for a logical field: exact header match,
// then case-insensitive, then normalized substring. Returns -1 when absent.
func (m *columnMap) resolve(field string) int {
	if idx, ok := m.fieldCache[field]; ok {
		return idx
	}
	idx := m.resolveUncached(field)
	m.fieldCache[field] = idx
	return idx
}

func (m *columnMap) resolveUncached(field string) int {
	names := m.variants[field]
	for _, n := range names {
		if idx, ok := m.byHeader[n]; ok {
			return idx
		}
		for h, idx := range m.byHeader {
			if strings.EqualFold(h, n) {
				return idx
			}
		}
	}
	for _, n := range names {
		nn := normalizeKey(n)
		if nn == "" {
			continue
		}
		for _, k := range m.normKeys {
			if strings.Contains(k, nn) {
				return m.byNorm[k]
			}
		}
	}
	return -1
}
