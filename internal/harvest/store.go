// Package harvest plans report downloads and runs the claim/fetch/parse/
// stage processor over the work queue.
package harvest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/resilead/sinir-cli/internal/db"
	"github.com/resilead/sinir-cli/internal/model"
)

// Store persists stakeholders and staged manifests.
type Store struct {
	pool db.Pool
}

// NewStore wraps a pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// ListStakeholders returns every known operating unit with its covered
// date range.
func (s *Store) ListStakeholders(ctx context.Context) ([]model.Stakeholder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT unidade, cpf_cnpj, nome, data_inicial, data_final
		FROM sinir.stakeholder
		ORDER BY unidade, cpf_cnpj`)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: list stakeholders")
	}
	defer rows.Close()

	var out []model.Stakeholder
	for rows.Next() {
		var sh model.Stakeholder
		if err := rows.Scan(&sh.Unidade, &sh.CpfCnpj, &sh.Nome, &sh.DataInicial, &sh.DataFinal); err != nil {
			return nil, eris.Wrap(err, "harvest: scan stakeholder")
		}
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "harvest: iterate stakeholders")
	}
	return out, nil
}

// UpdateStakeholderRange extends the covered window after planning: the
// start only ever moves earlier, the end takes the newly planned ceiling.
func (s *Store) UpdateStakeholderRange(ctx context.Context, unidade, cpfCnpj string, start, end time.Time) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE sinir.stakeholder
		SET data_inicial = LEAST(COALESCE(data_inicial, $1::date), $1::date),
		    data_final = $2,
		    last_modified_by = 'setup',
		    last_modified_dt = now()
		WHERE unidade = $3 AND cpf_cnpj = $4`,
		start, end, unidade, cpfCnpj); err != nil {
		return eris.Wrapf(err, "harvest: update range for %s", unidade)
	}
	return nil
}

// StageManifests upserts parsed records into the staging table. A manifest
// seen again replaces its staged payload; the normalization engine decides
// what a reprocess may change downstream.
func (s *Store) StageManifests(ctx context.Context, records []model.ManifestRecord, createdBy string) error {
	for _, rec := range records {
		residuos, err := json.Marshal(rec.Residuos)
		if err != nil {
			return eris.Wrapf(err, "harvest: marshal residuos %s", rec.Numero)
		}
		gerador, err := json.Marshal(rec.Gerador)
		if err != nil {
			return eris.Wrapf(err, "harvest: marshal gerador %s", rec.Numero)
		}
		transportador, err := json.Marshal(rec.Transportador)
		if err != nil {
			return eris.Wrapf(err, "harvest: marshal transportador %s", rec.Numero)
		}
		var veiculo []byte
		if rec.Veiculo != nil {
			if veiculo, err = json.Marshal(rec.Veiculo); err != nil {
				return eris.Wrapf(err, "harvest: marshal veiculo %s", rec.Numero)
			}
		}
		destinador, err := json.Marshal(rec.Destinador)
		if err != nil {
			return eris.Wrapf(err, "harvest: marshal destinador %s", rec.Numero)
		}

		if _, err := s.pool.Exec(ctx, `
			INSERT INTO sinir.mtr
				(numero, tipo_manifesto, responsavel_emissao, tem_mtr_complementar,
				 numero_mtr_provisorio, data_emissao, data_recebimento, situacao,
				 responsavel_recebimento, justificativa, tratamento, numero_cdf,
				 residuos, gerador, transportador, veiculo, destinador, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
				$13, $14, $15, $16, $17, $18)
			ON CONFLICT (numero) DO UPDATE SET
				tipo_manifesto = EXCLUDED.tipo_manifesto,
				responsavel_emissao = EXCLUDED.responsavel_emissao,
				tem_mtr_complementar = EXCLUDED.tem_mtr_complementar,
				numero_mtr_provisorio = EXCLUDED.numero_mtr_provisorio,
				data_emissao = EXCLUDED.data_emissao,
				data_recebimento = EXCLUDED.data_recebimento,
				situacao = EXCLUDED.situacao,
				responsavel_recebimento = EXCLUDED.responsavel_recebimento,
				justificativa = EXCLUDED.justificativa,
				tratamento = EXCLUDED.tratamento,
				numero_cdf = EXCLUDED.numero_cdf,
				residuos = EXCLUDED.residuos,
				gerador = EXCLUDED.gerador,
				transportador = EXCLUDED.transportador,
				veiculo = EXCLUDED.veiculo,
				destinador = EXCLUDED.destinador`,
			rec.Numero, rec.TipoManifesto, rec.ResponsavelEmissao, nullable(rec.TemMtrComplementar),
			nullable(rec.NumeroMtrProvisorio), rec.DataEmissao, nullable(rec.DataRecebimento), rec.Situacao,
			nullable(rec.ResponsavelRecebimento), nullable(rec.Justificativa), rec.Tratamento, nullable(rec.NumeroCdf),
			residuos, gerador, transportador, veiculo, destinador, createdBy); err != nil {
			return eris.Wrapf(err, "harvest: stage manifest %s", rec.Numero)
		}
	}
	return nil
}

// InsertDiscoveredStakeholders records counterparties seen on manifests,
// keeping whatever is already known about a unit.
func (s *Store) InsertDiscoveredStakeholders(ctx context.Context, stakeholders []model.Stakeholder, createdBy string) (int, error) {
	inserted := 0
	for _, sh := range stakeholders {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO sinir.stakeholder (unidade, cpf_cnpj, nome, created_by)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (unidade, cpf_cnpj) DO NOTHING`,
			sh.Unidade, sh.CpfCnpj, sh.Nome, createdBy)
		if err != nil {
			return inserted, eris.Wrapf(err, "harvest: insert stakeholder %s/%s", sh.Unidade, sh.CpfCnpj)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
