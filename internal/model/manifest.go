// Package model holds the domain types shared across the harvesting and
// normalization subsystems.
package model

import "time"

// Party identifies one of the three counterparties on a manifest
// (generator, transporter or receiver).
type Party struct {
	Unidade    string `json:"unidade"`
	CpfCnpj    string `json:"cpf_cnpj"`
	Nome       string `json:"nome"`
	Observacao string `json:"observacao,omitempty"`
}

// Vehicle carries the transport capability attached to the transporter
// role only. Driver name and plate come from the same report row.
type Vehicle struct {
	Motorista string `json:"motorista,omitempty"`
	Placa     string `json:"placa,omitempty"`
}

// WasteLine is one waste entry on a manifest. Quantities keep the report's
// semantics: the indicated quantity defaults to zero when unparseable, the
// received quantity is nullable.
type WasteLine struct {
	CodigoInterno      string   `json:"codigo_interno,omitempty"`
	Descricao          string   `json:"descricao"`
	DescricaoInterna   string   `json:"descricao_interna,omitempty"`
	Classe             string   `json:"classe,omitempty"`
	Unidade            string   `json:"unidade"`
	QuantidadeIndicada float64  `json:"quantidade_indicada"`
	QuantidadeRecebida *float64 `json:"quantidade_recebida,omitempty"`
}

// ManifestRecord is one MTR harvested from a report. The manifest number is
// the natural key; repeated report rows sharing a number contribute extra
// waste lines to the same record.
type ManifestRecord struct {
	Numero                 string      `json:"numero"`
	TipoManifesto          string      `json:"tipo_manifesto"`
	ResponsavelEmissao     string      `json:"responsavel_emissao"`
	TemMtrComplementar     string      `json:"tem_mtr_complementar,omitempty"`
	NumeroMtrProvisorio    string      `json:"numero_mtr_provisorio,omitempty"`
	DataEmissao            string      `json:"data_emissao"`
	DataRecebimento        string      `json:"data_recebimento,omitempty"`
	Situacao               string      `json:"situacao"`
	ResponsavelRecebimento string      `json:"responsavel_recebimento,omitempty"`
	Justificativa          string      `json:"justificativa,omitempty"`
	Tratamento             string      `json:"tratamento"`
	NumeroCdf              string      `json:"numero_cdf,omitempty"`
	Residuos               []WasteLine `json:"residuos"`
	Gerador                Party       `json:"gerador"`
	Transportador          Party       `json:"transportador"`
	Veiculo                *Vehicle    `json:"veiculo,omitempty"`
	Destinador             Party       `json:"destinador"`
}

// Stakeholder is an operating unit known to the harvesting subsystem.
// Identity key is (unidade, cpf_cnpj). The period columns record the date
// range already covered by generated fetch windows.
type Stakeholder struct {
	Unidade     string
	CpfCnpj     string
	Nome        string
	Endereco    string
	DataInicial *time.Time
	DataFinal   *time.Time
}

// Fetch job states. PROCESSING rows have no automatic timeout; a crashed
// worker leaves its claim in place for operator inspection.
const (
	JobPending    = "PENDING"
	JobProcessing = "PROCESSING"
	JobError      = "ERROR"
)

// FetchJob is one pending report download in the work queue, keyed by URL.
type FetchJob struct {
	URL       string
	Unidade   string
	Status    string
	LockedBy  string
	LockedAt  *time.Time
	LastError string
	CreatedBy string
	CreatedAt time.Time
}
