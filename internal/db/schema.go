package db

import (
	"context"

	"github.com/rotisserie/eris"
)

// schemaDDL creates the two schemas: sinir (harvest-owned staging, queue and
// stakeholder tables) and resilead (the normalized warehouse plus reference
// vocabularies). Idempotent, safe to re-run.
const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS sinir;
CREATE SCHEMA IF NOT EXISTS resilead;

CREATE TABLE IF NOT EXISTS sinir.stakeholder (
	unidade      TEXT NOT NULL,
	cpf_cnpj     TEXT NOT NULL,
	nome         TEXT NOT NULL,
	endereco     TEXT,
	data_inicial DATE,
	data_final   DATE,
	created_by   TEXT NOT NULL DEFAULT 'system',
	created_dt   TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_modified_by TEXT,
	last_modified_dt TIMESTAMPTZ,
	PRIMARY KEY (unidade, cpf_cnpj)
);

CREATE TABLE IF NOT EXISTS sinir.mtr_load (
	url        TEXT PRIMARY KEY,
	unidade    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'PENDING',
	locked_by  TEXT,
	locked_at  TIMESTAMPTZ,
	last_error TEXT,
	created_by TEXT NOT NULL,
	created_dt TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_mtr_load_status ON sinir.mtr_load(status, created_dt);

CREATE TABLE IF NOT EXISTS sinir.mtr (
	numero                  TEXT PRIMARY KEY,
	tipo_manifesto          TEXT NOT NULL,
	responsavel_emissao     TEXT NOT NULL,
	tem_mtr_complementar    TEXT,
	numero_mtr_provisorio   TEXT,
	data_emissao            TEXT NOT NULL,
	data_recebimento        TEXT,
	situacao                TEXT NOT NULL,
	responsavel_recebimento TEXT,
	justificativa           TEXT,
	tratamento              TEXT NOT NULL,
	numero_cdf              TEXT,
	residuos                JSONB NOT NULL,
	gerador                 JSONB NOT NULL,
	transportador           JSONB NOT NULL,
	veiculo                 JSONB,
	destinador              JSONB NOT NULL,
	created_by              TEXT NOT NULL,
	created_dt              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sinir.mtr_history (
	numero                  TEXT NOT NULL,
	tipo_manifesto          TEXT NOT NULL,
	responsavel_emissao     TEXT NOT NULL,
	tem_mtr_complementar    TEXT,
	numero_mtr_provisorio   TEXT,
	data_emissao            TEXT NOT NULL,
	data_recebimento        TEXT,
	situacao                TEXT NOT NULL,
	responsavel_recebimento TEXT,
	justificativa           TEXT,
	tratamento              TEXT,
	numero_cdf              TEXT,
	residuos                JSONB NOT NULL,
	gerador                 JSONB NOT NULL,
	transportador           JSONB NOT NULL,
	veiculo                 JSONB,
	destinador              JSONB NOT NULL,
	gerador_cpf_cnpj        TEXT NOT NULL,
	transportador_cpf_cnpj  TEXT NOT NULL,
	destinador_cpf_cnpj     TEXT NOT NULL,
	cpfs_cnpjs              TEXT NOT NULL,
	created_by              TEXT NOT NULL,
	created_dt              TIMESTAMPTZ NOT NULL,
	archived_dt             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_mtr_history_numero ON sinir.mtr_history(numero);
CREATE INDEX IF NOT EXISTS idx_mtr_history_cpfs ON sinir.mtr_history(gerador_cpf_cnpj, transportador_cpf_cnpj, destinador_cpf_cnpj);

CREATE TABLE IF NOT EXISTS sinir.mtr_quarantine (
	numero                  TEXT NOT NULL,
	tipo_manifesto          TEXT NOT NULL,
	responsavel_emissao     TEXT NOT NULL,
	tem_mtr_complementar    TEXT,
	numero_mtr_provisorio   TEXT,
	data_emissao            TEXT NOT NULL,
	data_recebimento        TEXT,
	situacao                TEXT NOT NULL,
	responsavel_recebimento TEXT,
	justificativa           TEXT,
	tratamento              TEXT,
	numero_cdf              TEXT,
	residuos                JSONB NOT NULL,
	gerador                 JSONB NOT NULL,
	transportador           JSONB NOT NULL,
	veiculo                 JSONB,
	destinador              JSONB NOT NULL,
	gerador_cpf_cnpj        TEXT NOT NULL,
	transportador_cpf_cnpj  TEXT NOT NULL,
	destinador_cpf_cnpj     TEXT NOT NULL,
	cpfs_cnpjs              TEXT NOT NULL,
	created_by              TEXT NOT NULL,
	created_dt              TIMESTAMPTZ NOT NULL,
	error_description       TEXT NOT NULL,
	quarantined_dt          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_mtr_quarantine_numero ON sinir.mtr_quarantine(numero);

CREATE TABLE IF NOT EXISTS resilead.entidade (
	id_entidade             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	cpf_cnpj                TEXT NOT NULL UNIQUE,
	nome_razao_social       TEXT NOT NULL,
	nome_fantasia           TEXT,
	tipo_pessoa             CHAR(1) NOT NULL,
	uf                      TEXT,
	municipio               TEXT,
	codigo_municipio_ibge   INT,
	cep                     TEXT,
	logradouro              TEXT,
	numero                  TEXT,
	complemento             TEXT,
	bairro                  TEXT,
	porte                   TEXT,
	data_inicio_atividade   DATE,
	cnae_principal          BIGINT,
	cnae_principal_descricao TEXT
);

CREATE TABLE IF NOT EXISTS resilead.tipo_entidade (
	id_entidade BIGINT NOT NULL REFERENCES resilead.entidade(id_entidade),
	tipo        TEXT NOT NULL,
	PRIMARY KEY (id_entidade, tipo)
);

CREATE TABLE IF NOT EXISTS resilead.entidade_responsavel (
	id_responsavel   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	id_entidade      BIGINT NOT NULL REFERENCES resilead.entidade(id_entidade),
	nome             TEXT NOT NULL,
	tipo_responsavel TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS resilead.entidade_veiculo (
	id_entidade   BIGINT NOT NULL REFERENCES resilead.entidade(id_entidade),
	placa_veiculo TEXT NOT NULL,
	PRIMARY KEY (id_entidade, placa_veiculo)
);

CREATE TABLE IF NOT EXISTS resilead.entidade_motorista (
	id_motorista BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	id_entidade  BIGINT NOT NULL REFERENCES resilead.entidade(id_entidade),
	nome         TEXT NOT NULL,
	proprio      BOOLEAN
);

CREATE TABLE IF NOT EXISTS resilead.entidade_endereco_unidade (
	unidade    TEXT NOT NULL,
	cpf_cnpj   TEXT NOT NULL,
	nome       TEXT NOT NULL,
	endereco   TEXT NOT NULL,
	updated_dt TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (unidade, cpf_cnpj)
);

CREATE TABLE IF NOT EXISTS resilead.situacao (
	id_situacao INT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	descricao   TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS resilead.tipo_manifesto (
	id_tipo_manifesto INT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	descricao         TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS resilead.tratamento (
	id_tratamento INT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	descricao     TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS resilead.unidade (
	codigo_unidade INT PRIMARY KEY,
	descricao      TEXT NOT NULL,
	sigla          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS resilead.classe (
	codigo_classe INT PRIMARY KEY,
	descricao     TEXT NOT NULL,
	resolucao     TEXT
);

CREATE TABLE IF NOT EXISTS resilead.residuo (
	codigo_residuo        TEXT PRIMARY KEY,
	descricao             TEXT NOT NULL,
	perigoso              BOOLEAN NOT NULL DEFAULT false,
	codigo_unidade_padrao INT REFERENCES resilead.unidade(codigo_unidade)
);

CREATE TABLE IF NOT EXISTS resilead.registro (
	id_registro                  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	numero_mtr                   TEXT NOT NULL UNIQUE,
	id_tipo_manifesto            INT NOT NULL REFERENCES resilead.tipo_manifesto(id_tipo_manifesto),
	id_gerador                   BIGINT NOT NULL REFERENCES resilead.entidade(id_entidade),
	id_transportador             BIGINT NOT NULL REFERENCES resilead.entidade(id_entidade),
	id_destinador                BIGINT NOT NULL REFERENCES resilead.entidade(id_entidade),
	id_entidade_resp_emissao     BIGINT NOT NULL REFERENCES resilead.entidade_responsavel(id_responsavel),
	id_entidade_resp_recebimento BIGINT REFERENCES resilead.entidade_responsavel(id_responsavel),
	id_situacao                  INT NOT NULL REFERENCES resilead.situacao(id_situacao),
	id_tratamento                INT REFERENCES resilead.tratamento(id_tratamento),
	numero_cdf                   TEXT,
	justificativa                TEXT,
	data_emissao                 DATE,
	data_recebimento             DATE
);

CREATE TABLE IF NOT EXISTS resilead.registro_residuo (
	id_registro_residuo  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	id_registro          BIGINT NOT NULL REFERENCES resilead.registro(id_registro),
	codigo_residuo       TEXT NOT NULL REFERENCES resilead.residuo(codigo_residuo),
	codigo_classe        INT REFERENCES resilead.classe(codigo_classe),
	codigo_unidade       INT REFERENCES resilead.unidade(codigo_unidade),
	quantidade_indicada  NUMERIC(18,4) NOT NULL DEFAULT 0,
	quantidade_recebida  NUMERIC(18,4)
);

CREATE INDEX IF NOT EXISTS idx_registro_residuo_registro ON resilead.registro_residuo(id_registro);
`

// Migrate applies the schema DDL.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return eris.Wrap(err, "db: apply schema")
	}
	return nil
}
