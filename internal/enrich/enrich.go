// Package enrich materializes harvested stakeholders as warehouse entities,
// pulling company details from the public registry along the way.
package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/brasilapi"
	"github.com/resilead/sinir-cli/internal/db"
	"github.com/resilead/sinir-cli/internal/normalize"
)

// ErrRegistryRequired fails a company record under the strict policy when
// the registry cannot confirm it.
var ErrRegistryRequired = eris.New("enrich: registry confirmation required")

// Registry policies for company records without a registry hit.
const (
	PolicyLenient = "lenient"
	PolicyStrict  = "strict"
)

// Registry is the lookup surface of the company registry client. A (nil,
// nil) result is a miss.
type Registry interface {
	Lookup(ctx context.Context, cnpj string) (*brasilapi.Company, error)
}

// Options tunes the enrichment loop.
type Options struct {
	BatchSize       int
	Drain           bool
	RegistryPolicy  string
	RegistryBackoff time.Duration
	// PauseEvery successful registry calls, sleep PauseFor. Zero disables.
	PauseEvery int
	PauseFor   time.Duration
}

// Totals counts one run's outcomes.
type Totals struct {
	Processed   int64
	Individuals int64
	Companies   int64
	APIHits     int64
	Inserted    int64
	Updated     int64
	Errors      int64
}

// Enricher runs the stakeholder-to-entity pipeline.
type Enricher struct {
	pool     db.Pool
	registry Registry
	opts     Options
	// hits counts successful registry calls for the pause throttle; shared
	// across the run.
	hits   atomic.Int64
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// New builds an enricher.
func New(pool db.Pool, registry Registry, opts Options) *Enricher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.RegistryPolicy == "" {
		opts.RegistryPolicy = PolicyLenient
	}
	return &Enricher{
		pool:     pool,
		registry: registry,
		opts:     opts,
		logger:   zap.L().With(zap.String("component", "enrich")),
		sleep:    sleepCtx,
	}
}

type sourceRow struct {
	cpfCnpj string
	nome    string
}

// Run processes unenriched stakeholders batch by batch.
func (e *Enricher) Run(ctx context.Context) (Totals, error) {
	var totals Totals
	for {
		batch, err := e.readSourceBatch(ctx, e.opts.BatchSize)
		if err != nil {
			return totals, err
		}
		if len(batch) == 0 {
			if totals.Processed == 0 {
				e.logger.Info("no pending stakeholders to enrich")
			}
			break
		}
		e.logger.Info("enriching batch", zap.Int("size", len(batch)))

		before := totals.Processed
		for _, row := range batch {
			if err := ctx.Err(); err != nil {
				return totals, eris.Wrap(err, "enrich: canceled")
			}
			if err := e.enrichOne(ctx, row, &totals); err != nil {
				totals.Errors++
				e.logger.Warn("enrichment failed",
					zap.String("cpf_cnpj", row.cpfCnpj), zap.Error(err))
			} else {
				totals.Processed++
			}
		}
		if !e.opts.Drain {
			break
		}
		// Failed rows never reach entidade, so the source query returns
		// them again next pass. A pass with zero successes means every
		// remaining row fails; draining further would just repeat it.
		if totals.Processed == before {
			e.logger.Info("no stakeholders enriched this pass, stopping",
				zap.Int64("errors", totals.Errors))
			break
		}
	}
	e.logger.Info("enrichment completed",
		zap.Int64("processed", totals.Processed),
		zap.Int64("errors", totals.Errors),
		zap.Int64("pf", totals.Individuals),
		zap.Int64("pj", totals.Companies),
		zap.Int64("api_hits", totals.APIHits),
		zap.Int64("inserted", totals.Inserted),
		zap.Int64("updated", totals.Updated))
	return totals, nil
}

// readSourceBatch selects stakeholders with no entity yet, skipping known
// junk tax ids.
func (e *Enricher) readSourceBatch(ctx context.Context, limit int) ([]sourceRow, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT s.cpf_cnpj, s.nome
		FROM sinir.stakeholder s
		LEFT JOIN resilead.entidade e ON e.cpf_cnpj = s.cpf_cnpj
		WHERE e.cpf_cnpj IS NULL
		  AND s.cpf_cnpj NOT IN ('10', '', '00000000000', '00000000000000')
		ORDER BY s.cpf_cnpj
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: read source batch")
	}
	defer rows.Close()

	var batch []sourceRow
	for rows.Next() {
		var r sourceRow
		if err := rows.Scan(&r.cpfCnpj, &r.nome); err != nil {
			return nil, eris.Wrap(err, "enrich: scan source row")
		}
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "enrich: iterate source rows")
	}
	return batch, nil
}

func (e *Enricher) enrichOne(ctx context.Context, row sourceRow, totals *Totals) error {
	cpfCnpj := normalize.OnlyDigits(row.cpfCnpj)
	nome := normalize.Clean(row.nome)
	isIndividual := len(cpfCnpj) == 11
	tipoPessoa := "J"
	if isIndividual {
		tipoPessoa = "F"
	}

	var company *brasilapi.Company
	if !isIndividual {
		var err error
		company, err = e.registry.Lookup(ctx, cpfCnpj)
		if err != nil {
			return err
		}
		if company != nil {
			totals.APIHits++
			e.throttle(ctx)
			if rz := normalize.Clean(company.RazaoSocial); rz != "" {
				nome = rz
			}
		} else if e.opts.RegistryPolicy == PolicyStrict {
			if e.opts.RegistryBackoff > 0 {
				if err := e.sleep(ctx, e.opts.RegistryBackoff); err != nil {
					return eris.Wrap(err, "enrich: backoff")
				}
			}
			return eris.Wrapf(ErrRegistryRequired, "cnpj %s", cpfCnpj)
		}
	}

	inserted, err := e.upsertEntity(ctx, cpfCnpj, nome, tipoPessoa, company)
	if err != nil {
		return err
	}
	if isIndividual {
		totals.Individuals++
	} else {
		totals.Companies++
	}
	if inserted {
		totals.Inserted++
	} else {
		totals.Updated++
	}
	return nil
}

func (e *Enricher) upsertEntity(ctx context.Context, cpfCnpj, nome, tipoPessoa string, company *brasilapi.Company) (bool, error) {
	var uf, municipio, cep, logradouro, numero, complemento, bairro, porte, cnaeDesc, fantasia *string
	var codIbge *int
	var cnae *int64
	var inicioAtiv *time.Time

	if company != nil {
		uf = normalize.CleanOrNull(company.UF)
		municipio = normalize.CleanOrNull(company.Municipio)
		cep = normalize.CleanOrNull(company.CEP)
		logradouro = normalize.CleanOrNull(company.Logradouro)
		numero = normalize.CleanOrNull(company.Numero)
		complemento = normalize.CleanOrNull(company.Complemento)
		bairro = normalize.CleanOrNull(company.Bairro)
		porte = normalize.CleanOrNull(company.Porte)
		fantasia = normalize.CleanOrNull(company.NomeFantasia)
		cnaeDesc = normalize.CleanOrNull(company.CnaeFiscalDescricao)
		codIbge = company.CodigoMunicipioIBGE
		cnae = company.CnaeFiscal
		inicioAtiv = normalize.ParseDate(company.DataInicioAtividade)
	}

	var inserted bool
	err := e.pool.QueryRow(ctx, `
		INSERT INTO resilead.entidade
			(cpf_cnpj, nome_razao_social, nome_fantasia, tipo_pessoa,
			 uf, municipio, codigo_municipio_ibge, cep, logradouro, numero,
			 complemento, bairro, porte, data_inicio_atividade,
			 cnae_principal, cnae_principal_descricao)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (cpf_cnpj) DO UPDATE SET
			nome_razao_social = EXCLUDED.nome_razao_social,
			uf = EXCLUDED.uf,
			municipio = EXCLUDED.municipio,
			codigo_municipio_ibge = EXCLUDED.codigo_municipio_ibge,
			cep = EXCLUDED.cep,
			logradouro = EXCLUDED.logradouro,
			numero = EXCLUDED.numero,
			complemento = EXCLUDED.complemento,
			bairro = EXCLUDED.bairro,
			porte = EXCLUDED.porte,
			data_inicio_atividade = EXCLUDED.data_inicio_atividade,
			cnae_principal = EXCLUDED.cnae_principal,
			cnae_principal_descricao = EXCLUDED.cnae_principal_descricao
		RETURNING (xmax = 0)`,
		cpfCnpj, nome, fantasia, tipoPessoa,
		uf, municipio, codIbge, cep, logradouro, numero,
		complemento, bairro, porte, inicioAtiv,
		cnae, cnaeDesc).Scan(&inserted)
	if err != nil {
		return false, eris.Wrapf(err, "enrich: upsert entidade %s", cpfCnpj)
	}
	return inserted, nil
}

// throttle pauses the run after every PauseEvery successful registry calls
// so the upstream never sees a sustained burst.
func (e *Enricher) throttle(ctx context.Context) {
	if e.opts.PauseEvery <= 0 || e.opts.PauseFor <= 0 {
		return
	}
	if n := e.hits.Add(1); n%int64(e.opts.PauseEvery) == 0 {
		e.logger.Info("registry pause",
			zap.Int64("hits", n), zap.Duration("for", e.opts.PauseFor))
		_ = e.sleep(ctx, e.opts.PauseFor)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
