package normalize

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/db"
	"github.com/resilead/sinir-cli/internal/model"
)

// ErrMissingEntity means a manifest references a counterparty that the
// enrichment step has not materialized yet. The record is not lost: it
// stays quarantined until the entity exists and the row is replayed.
var ErrMissingEntity = eris.New("normalize: missing entity for manifest")

// ownerSimilarityThreshold decides whether a driver on an individual
// transporter's manifest is the transporter themselves.
const ownerSimilarityThreshold = 0.80

// maxErrorLen bounds the quarantine error description.
const maxErrorLen = 2048

// dateFormats are the emission/receipt formats seen in reports, local
// pt-BR forms first.
var dateFormats = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// StagedRecord is one staged manifest plus its staging audit columns.
type StagedRecord struct {
	model.ManifestRecord
	CreatedBy string
	CreatedDt time.Time
}

// Totals summarizes one engine run.
type Totals struct {
	Processed int64
	Errors    int64
	Rounds    int64
}

// Options tunes the engine loop.
type Options struct {
	BatchSize     int
	Drain         bool
	ProgressEvery int
}

// Engine moves staged manifests into the normalized warehouse.
type Engine struct {
	pool   db.Pool
	opts   Options
	logger *zap.Logger
}

// NewEngine builds an engine.
func NewEngine(pool db.Pool, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 10
	}
	return &Engine{
		pool:   pool,
		opts:   opts,
		logger: zap.L().With(zap.String("component", "normalize")),
	}
}

// Run processes staged manifests batch by batch. Each record is normalized
// in its own transaction; success moves it to history, failure moves it to
// quarantine. With Drain set the loop repeats until the staging table
// yields nothing.
func (e *Engine) Run(ctx context.Context) (Totals, error) {
	var totals Totals
	for {
		batch, err := e.readBatch(ctx, e.opts.BatchSize)
		if err != nil {
			return totals, err
		}
		if len(batch) == 0 {
			if totals.Processed == 0 && totals.Errors == 0 {
				e.logger.Info("no staged manifests to normalize")
			}
			break
		}
		totals.Rounds++
		e.logger.Info("normalizing batch",
			zap.Int64("round", totals.Rounds), zap.Int("size", len(batch)))

		for i, rec := range batch {
			if err := ctx.Err(); err != nil {
				return totals, eris.Wrap(err, "normalize: canceled")
			}
			if err := e.normalizeOne(ctx, rec); err != nil {
				totals.Errors++
				e.logger.Warn("normalization failed",
					zap.String("numero", rec.Numero), zap.Error(err))
				if qerr := e.quarantine(ctx, rec, err); qerr != nil {
					e.logger.Error("quarantine failed",
						zap.String("numero", rec.Numero), zap.Error(qerr))
				}
			} else {
				if err := e.moveToHistory(ctx, rec); err != nil {
					return totals, err
				}
				totals.Processed++
			}
			done := i + 1
			if done%e.opts.ProgressEvery == 0 || done == len(batch) {
				e.logger.Info("progress",
					zap.Int("done", done), zap.Int("batch", len(batch)),
					zap.Int64("processed", totals.Processed),
					zap.Int64("errors", totals.Errors))
			}
		}
		if !e.opts.Drain {
			break
		}
	}
	e.logger.Info("normalization completed",
		zap.Int64("processed", totals.Processed),
		zap.Int64("errors", totals.Errors),
		zap.Int64("rounds", totals.Rounds))
	return totals, nil
}

func (e *Engine) readBatch(ctx context.Context, limit int) ([]StagedRecord, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT numero, tipo_manifesto, responsavel_emissao, tem_mtr_complementar,
		       numero_mtr_provisorio, data_emissao, data_recebimento, situacao,
		       responsavel_recebimento, justificativa, tratamento, numero_cdf,
		       residuos, gerador, transportador, veiculo, destinador,
		       created_by, created_dt
		FROM sinir.mtr
		ORDER BY numero
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: read batch")
	}
	defer rows.Close()

	var batch []StagedRecord
	for rows.Next() {
		var rec StagedRecord
		var temComp, mtrProv, dataReceb, respReceb, just, cdf *string
		var residuos, gerador, transportador, veiculo, destinador []byte
		err := rows.Scan(&rec.Numero, &rec.TipoManifesto, &rec.ResponsavelEmissao,
			&temComp, &mtrProv, &rec.DataEmissao, &dataReceb, &rec.Situacao,
			&respReceb, &just, &rec.Tratamento, &cdf,
			&residuos, &gerador, &transportador, &veiculo, &destinador,
			&rec.CreatedBy, &rec.CreatedDt)
		if err != nil {
			return nil, eris.Wrap(err, "normalize: scan staged row")
		}
		rec.TemMtrComplementar = deref(temComp)
		rec.NumeroMtrProvisorio = deref(mtrProv)
		rec.DataRecebimento = deref(dataReceb)
		rec.ResponsavelRecebimento = deref(respReceb)
		rec.Justificativa = deref(just)
		rec.NumeroCdf = deref(cdf)

		if err := json.Unmarshal(residuos, &rec.Residuos); err != nil {
			return nil, eris.Wrapf(err, "normalize: decode residuos for %s", rec.Numero)
		}
		if err := json.Unmarshal(gerador, &rec.Gerador); err != nil {
			return nil, eris.Wrapf(err, "normalize: decode gerador for %s", rec.Numero)
		}
		if err := json.Unmarshal(transportador, &rec.Transportador); err != nil {
			return nil, eris.Wrapf(err, "normalize: decode transportador for %s", rec.Numero)
		}
		if len(veiculo) > 0 {
			if err := json.Unmarshal(veiculo, &rec.Veiculo); err != nil {
				return nil, eris.Wrapf(err, "normalize: decode veiculo for %s", rec.Numero)
			}
		}
		if err := json.Unmarshal(destinador, &rec.Destinador); err != nil {
			return nil, eris.Wrapf(err, "normalize: decode destinador for %s", rec.Numero)
		}
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "normalize: iterate staged rows")
	}
	return batch, nil
}

// normalizeOne writes one manifest into the warehouse atomically.
func (e *Engine) normalizeOne(ctx context.Context, rec StagedRecord) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "normalize: begin tx")
	}
	defer tx.Rollback(ctx)

	tipoManifestoID, err := e.ensureRef(ctx, tx, "tipo_manifesto", "id_tipo_manifesto", Clean(rec.TipoManifesto))
	if err != nil {
		return err
	}
	situacaoID, err := e.ensureRef(ctx, tx, "situacao", "id_situacao", Clean(rec.Situacao))
	if err != nil {
		return err
	}
	var tratamentoID *int
	if t := Clean(rec.Tratamento); t != "" {
		id, err := e.ensureRef(ctx, tx, "tratamento", "id_tratamento", t)
		if err != nil {
			return err
		}
		tratamentoID = &id
	}

	idGerador, err := e.entityID(ctx, tx, rec.Gerador.CpfCnpj)
	if err != nil {
		return err
	}
	idTransportador, err := e.entityID(ctx, tx, rec.Transportador.CpfCnpj)
	if err != nil {
		return err
	}
	idDestinador, err := e.entityID(ctx, tx, rec.Destinador.CpfCnpj)
	if err != nil {
		return err
	}

	for _, role := range []struct {
		id   int64
		tipo string
	}{
		{idGerador, "GERADOR"},
		{idTransportador, "TRANSPORTADOR"},
		{idDestinador, "DESTINADOR"},
	} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO resilead.tipo_entidade (id_entidade, tipo)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, role.id, role.tipo); err != nil {
			return eris.Wrapf(err, "normalize: ensure role %s", role.tipo)
		}
	}

	idRespEmissao, err := e.ensureResponsavel(ctx, tx, idGerador, "EMISSAO", rec.ResponsavelEmissao)
	if err != nil {
		return err
	}
	var idRespReceb *int64
	if Clean(rec.ResponsavelRecebimento) != "" {
		id, err := e.ensureResponsavel(ctx, tx, idDestinador, "RECEBIMENTO", rec.ResponsavelRecebimento)
		if err != nil {
			return err
		}
		idRespReceb = &id
	}

	idRegistro, inserted, err := e.upsertRegistro(ctx, tx, rec,
		tipoManifestoID, situacaoID, tratamentoID,
		idGerador, idTransportador, idDestinador, idRespEmissao, idRespReceb)
	if err != nil {
		return err
	}

	if err := e.ensureVehicleDriver(ctx, tx, idTransportador, rec); err != nil {
		return err
	}

	// Waste lines are append-only: a reprocessed manifest keeps the lines
	// written on first sight.
	if inserted {
		if err := e.insertWasteLines(ctx, tx, idRegistro, rec.Residuos); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "normalize: commit")
	}
	return nil
}

// ensureRef inserts a vocabulary description if missing and returns its id.
func (e *Engine) ensureRef(ctx context.Context, tx pgx.Tx, table, idCol, descricao string) (int, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO resilead.`+table+` (descricao) VALUES ($1) ON CONFLICT (descricao) DO NOTHING`,
		descricao); err != nil {
		return 0, eris.Wrapf(err, "normalize: ensure %s", table)
	}
	var id int
	err := tx.QueryRow(ctx,
		`SELECT `+idCol+` FROM resilead.`+table+` WHERE descricao = $1`,
		descricao).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "normalize: resolve %s", table)
	}
	return id, nil
}

func (e *Engine) entityID(ctx context.Context, tx pgx.Tx, cpfCnpj string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id_entidade FROM resilead.entidade WHERE cpf_cnpj = $1`,
		OnlyDigits(cpfCnpj)).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, eris.Wrapf(ErrMissingEntity, "cpf_cnpj %s", OnlyDigits(cpfCnpj))
	}
	if err != nil {
		return 0, eris.Wrap(err, "normalize: resolve entity")
	}
	return id, nil
}

// ensureResponsavel dedupes responsible persons by entity, role and
// case-folded name.
func (e *Engine) ensureResponsavel(ctx context.Context, tx pgx.Tx, idEntidade int64, tipo, nome string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		SELECT id_responsavel FROM resilead.entidade_responsavel
		WHERE id_entidade = $1 AND tipo_responsavel = $2
		  AND UPPER(TRIM(nome)) = UPPER(TRIM($3))`,
		idEntidade, tipo, NormalizeName(nome)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return 0, eris.Wrapf(err, "normalize: lookup responsavel %s", tipo)
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO resilead.entidade_responsavel (id_entidade, nome, tipo_responsavel)
		VALUES ($1, $2, $3)
		RETURNING id_responsavel`,
		idEntidade, nome, tipo).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "normalize: insert responsavel %s", tipo)
	}
	return id, nil
}

// upsertRegistro inserts or refreshes the manifest row. Only the fields
// that legitimately change on re-harvest are updated; party and emission
// links stay as first written. Returns whether the row was newly inserted.
func (e *Engine) upsertRegistro(ctx context.Context, tx pgx.Tx, rec StagedRecord,
	idTipoManifesto, idSituacao int, idTratamento *int,
	idGerador, idTransportador, idDestinador, idRespEmissao int64, idRespReceb *int64,
) (int64, bool, error) {
	var id int64
	var inserted bool
	err := tx.QueryRow(ctx, `
		INSERT INTO resilead.registro
			(numero_mtr, id_tipo_manifesto, id_gerador, id_transportador, id_destinador,
			 id_entidade_resp_emissao, id_entidade_resp_recebimento,
			 id_situacao, id_tratamento, numero_cdf, justificativa, data_emissao, data_recebimento)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (numero_mtr) DO UPDATE SET
			id_tipo_manifesto = EXCLUDED.id_tipo_manifesto,
			data_emissao = EXCLUDED.data_emissao,
			data_recebimento = EXCLUDED.data_recebimento,
			id_situacao = EXCLUDED.id_situacao,
			justificativa = EXCLUDED.justificativa,
			id_tratamento = EXCLUDED.id_tratamento,
			numero_cdf = EXCLUDED.numero_cdf
		RETURNING id_registro, (xmax = 0)`,
		rec.Numero, idTipoManifesto, idGerador, idTransportador, idDestinador,
		idRespEmissao, idRespReceb, idSituacao, idTratamento,
		CleanOrNull(rec.NumeroCdf), CleanOrNull(rec.Justificativa),
		ParseDate(rec.DataEmissao), ParseDate(rec.DataRecebimento),
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, eris.Wrapf(err, "normalize: upsert registro %s", rec.Numero)
	}
	return id, inserted, nil
}

// ensureVehicleDriver records the transporter's plate and driver. The
// owner-operator flag is only computed for individuals; for companies it
// stays null.
func (e *Engine) ensureVehicleDriver(ctx context.Context, tx pgx.Tx, idTransportador int64, rec StagedRecord) error {
	if rec.Veiculo == nil {
		return nil
	}
	if placa := Clean(rec.Veiculo.Placa); placa != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO resilead.entidade_veiculo (id_entidade, placa_veiculo)
			VALUES ($1, UPPER($2))
			ON CONFLICT DO NOTHING`,
			idTransportador, placa); err != nil {
			return eris.Wrap(err, "normalize: insert veiculo")
		}
	}

	motorista := Clean(rec.Veiculo.Motorista)
	if motorista == "" {
		return nil
	}

	var proprio *bool
	var tipoPessoa string
	err := tx.QueryRow(ctx,
		`SELECT tipo_pessoa FROM resilead.entidade WHERE id_entidade = $1`,
		idTransportador).Scan(&tipoPessoa)
	if err != nil && err != pgx.ErrNoRows {
		return eris.Wrap(err, "normalize: transporter person type")
	}
	if tipoPessoa == "F" {
		own := Similarity(motorista, rec.Transportador.Nome) >= ownerSimilarityThreshold
		proprio = &own
	}

	var existing int64
	err = tx.QueryRow(ctx, `
		SELECT id_motorista FROM resilead.entidade_motorista
		WHERE id_entidade = $1 AND UPPER(TRIM(nome)) = UPPER(TRIM($2))`,
		idTransportador, NormalizeName(motorista)).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != pgx.ErrNoRows {
		return eris.Wrap(err, "normalize: lookup motorista")
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO resilead.entidade_motorista (id_entidade, nome, proprio)
		VALUES ($1, $2, $3)`,
		idTransportador, motorista, proprio); err != nil {
		return eris.Wrap(err, "normalize: insert motorista")
	}
	return nil
}

func (e *Engine) insertWasteLines(ctx context.Context, tx pgx.Tx, idRegistro int64, lines []model.WasteLine) error {
	for _, line := range lines {
		codigo := DeriveWasteCode(line.Descricao)
		if codigo == "" {
			continue
		}
		perigoso := HasDangerousMark(line.Descricao) || HasDangerousMark(codigo)
		if _, err := tx.Exec(ctx, `
			INSERT INTO resilead.residuo (codigo_residuo, descricao, perigoso)
			VALUES ($1, $2, $3)
			ON CONFLICT (codigo_residuo) DO NOTHING`,
			codigo, Clean(line.Descricao), perigoso); err != nil {
			return eris.Wrapf(err, "normalize: ensure residuo %s", codigo)
		}

		classeID, err := e.resolveClasse(ctx, tx, line.Classe)
		if err != nil {
			return err
		}
		unidadeID, err := e.resolveUnidade(ctx, tx, line.Unidade)
		if err != nil {
			return err
		}
		if unidadeID == nil {
			unidadeID, err = e.defaultUnit(ctx, tx, codigo)
			if err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO resilead.registro_residuo
				(id_registro, codigo_residuo, codigo_classe, codigo_unidade,
				 quantidade_indicada, quantidade_recebida)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			idRegistro, codigo, classeID, unidadeID,
			line.QuantidadeIndicada, line.QuantidadeRecebida); err != nil {
			return eris.Wrapf(err, "normalize: insert waste line %s", codigo)
		}
	}
	return nil
}

func (e *Engine) resolveClasse(ctx context.Context, tx pgx.Tx, classe string) (*int, error) {
	if Clean(classe) == "" {
		return nil, nil
	}
	var id int
	err := tx.QueryRow(ctx, `
		SELECT codigo_classe FROM resilead.classe
		WHERE UPPER(TRIM(descricao)) = UPPER(TRIM($1))`,
		Clean(classe)).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "normalize: resolve classe")
	}
	return &id, nil
}

// resolveUnidade tries the abbreviation first, then the full description.
func (e *Engine) resolveUnidade(ctx context.Context, tx pgx.Tx, unidade string) (*int, error) {
	if Clean(unidade) == "" {
		return nil, nil
	}
	var id int
	err := tx.QueryRow(ctx, `
		SELECT codigo_unidade FROM resilead.unidade
		WHERE UPPER(TRIM(sigla)) = UPPER(TRIM($1))`,
		Clean(unidade)).Scan(&id)
	if err == nil {
		return &id, nil
	}
	if err != pgx.ErrNoRows {
		return nil, eris.Wrap(err, "normalize: resolve unidade by sigla")
	}
	err = tx.QueryRow(ctx, `
		SELECT codigo_unidade FROM resilead.unidade
		WHERE UPPER(TRIM(descricao)) = UPPER(TRIM($1))`,
		Clean(unidade)).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "normalize: resolve unidade by descricao")
	}
	return &id, nil
}

func (e *Engine) defaultUnit(ctx context.Context, tx pgx.Tx, codigoResiduo string) (*int, error) {
	var id *int
	err := tx.QueryRow(ctx,
		`SELECT codigo_unidade_padrao FROM resilead.residuo WHERE codigo_residuo = $1`,
		codigoResiduo).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "normalize: residuo default unit")
	}
	return id, nil
}

// moveToHistory archives the staged row and removes it from staging, in
// one transaction so the record cannot vanish or double up.
func (e *Engine) moveToHistory(ctx context.Context, rec StagedRecord) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "normalize: begin history tx")
	}
	defer tx.Rollback(ctx)

	if err := e.insertArchiveRow(ctx, tx, "sinir.mtr_history", rec, nil); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM sinir.mtr WHERE numero = $1`, rec.Numero); err != nil {
		return eris.Wrapf(err, "normalize: delete staged %s", rec.Numero)
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "normalize: commit history")
	}
	return nil
}

// quarantine copies the staged row into the error bucket with the failure
// description and removes it from staging. A broken quarantine write is
// reported but never fails the batch.
func (e *Engine) quarantine(ctx context.Context, rec StagedRecord, cause error) error {
	desc := cause.Error()
	if len(desc) > maxErrorLen {
		desc = desc[:maxErrorLen]
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "normalize: begin quarantine tx")
	}
	defer tx.Rollback(ctx)

	if err := e.insertArchiveRow(ctx, tx, "sinir.mtr_quarantine", rec, &desc); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM sinir.mtr WHERE numero = $1`, rec.Numero); err != nil {
		return eris.Wrapf(err, "normalize: delete quarantined %s", rec.Numero)
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "normalize: commit quarantine")
	}
	return nil
}

func (e *Engine) insertArchiveRow(ctx context.Context, tx pgx.Tx, table string, rec StagedRecord, errDesc *string) error {
	residuos, err := json.Marshal(rec.Residuos)
	if err != nil {
		return eris.Wrap(err, "normalize: marshal residuos")
	}
	gerador, err := json.Marshal(rec.Gerador)
	if err != nil {
		return eris.Wrap(err, "normalize: marshal gerador")
	}
	transportador, err := json.Marshal(rec.Transportador)
	if err != nil {
		return eris.Wrap(err, "normalize: marshal transportador")
	}
	var veiculo []byte
	if rec.Veiculo != nil {
		if veiculo, err = json.Marshal(rec.Veiculo); err != nil {
			return eris.Wrap(err, "normalize: marshal veiculo")
		}
	}
	destinador, err := json.Marshal(rec.Destinador)
	if err != nil {
		return eris.Wrap(err, "normalize: marshal destinador")
	}

	gCpf := OnlyDigits(rec.Gerador.CpfCnpj)
	tCpf := OnlyDigits(rec.Transportador.CpfCnpj)
	dCpf := OnlyDigits(rec.Destinador.CpfCnpj)
	cpfs := gCpf + "," + tCpf + "," + dCpf

	cols := `numero, tipo_manifesto, responsavel_emissao, tem_mtr_complementar,
		numero_mtr_provisorio, data_emissao, data_recebimento, situacao,
		responsavel_recebimento, justificativa, tratamento, numero_cdf,
		residuos, gerador, transportador, veiculo, destinador,
		gerador_cpf_cnpj, transportador_cpf_cnpj, destinador_cpf_cnpj, cpfs_cnpjs,
		created_by, created_dt`
	placeholders := `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23`
	args := []any{
		rec.Numero, Clean(rec.TipoManifesto), Clean(rec.ResponsavelEmissao),
		CleanOrNull(rec.TemMtrComplementar), CleanOrNull(rec.NumeroMtrProvisorio),
		Clean(rec.DataEmissao), CleanOrNull(rec.DataRecebimento), Clean(rec.Situacao),
		CleanOrNull(rec.ResponsavelRecebimento), CleanOrNull(rec.Justificativa),
		CleanOrNull(rec.Tratamento), CleanOrNull(rec.NumeroCdf),
		residuos, gerador, transportador, veiculo, destinador,
		gCpf, tCpf, dCpf, cpfs,
		rec.CreatedBy, rec.CreatedDt,
	}
	if errDesc != nil {
		cols += ", error_description"
		placeholders += ", $24"
		args = append(args, *errDesc)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+table+` (`+cols+`) VALUES (`+placeholders+`)`,
		args...); err != nil {
		return eris.Wrapf(err, "normalize: archive %s into %s", rec.Numero, table)
	}
	return nil
}

// ParseDate parses the report date forms, returning nil for blanks and
// unrecognized values.
func ParseDate(s string) *time.Time {
	s = Clean(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
