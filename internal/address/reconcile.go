// Package address backfills per-unit address rows for known organizations
// from the partner lookup endpoint.
package address

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/resilead/sinir-cli/internal/db"
	"github.com/resilead/sinir-cli/internal/normalize"
	"github.com/resilead/sinir-cli/internal/partner"
)

// PartnerRegistry looks up the operating units registered for a CNPJ.
type PartnerRegistry interface {
	Lookup(ctx context.Context, cnpj string) ([]partner.Address, error)
}

// Options tunes the reconciliation loop.
type Options struct {
	BatchSize   int
	Concurrency int
}

// Totals summarizes one run.
type Totals struct {
	Rounds    int
	Looked    int
	Failed    int
	Persisted int
}

// Reconciler polls for organizations without a known address and persists
// whatever the partner endpoint reports for them.
type Reconciler struct {
	pool     db.Pool
	partners PartnerRegistry
	opts     Options
	logger   *zap.Logger
}

// New builds a reconciler.
func New(pool db.Pool, partners PartnerRegistry, opts Options) *Reconciler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Reconciler{
		pool:     pool,
		partners: partners,
		opts:     opts,
		logger:   zap.L().With(zap.String("component", "address")),
	}
}

// Run loops in rounds: pick CNPJs still missing an address, look each one up,
// persist the units found. A round that resolves nothing ends the run, since
// the remaining CNPJs are not going to resolve on a retry either.
func (r *Reconciler) Run(ctx context.Context) (Totals, error) {
	var totals Totals
	for {
		cnpjs, err := r.pendingCnpjs(ctx)
		if err != nil {
			return totals, err
		}
		if len(cnpjs) == 0 {
			break
		}
		totals.Rounds++
		r.logger.Info("reconciliation round",
			zap.Int("round", totals.Rounds), zap.Int("cnpjs", len(cnpjs)))

		resolved, err := r.resolve(ctx, cnpjs, &totals)
		if err != nil {
			return totals, err
		}
		if len(resolved) == 0 {
			r.logger.Info("no addresses resolved this round, stopping")
			break
		}

		if err := r.persist(ctx, resolved); err != nil {
			return totals, err
		}
		totals.Persisted += len(resolved)
		r.logger.Info("round persisted",
			zap.Int("round", totals.Rounds),
			zap.Int("addresses", len(resolved)),
			zap.Int("total", totals.Persisted))
	}
	r.logger.Info("reconciliation finished",
		zap.Int("rounds", totals.Rounds),
		zap.Int("looked", totals.Looked),
		zap.Int("failed", totals.Failed),
		zap.Int("persisted", totals.Persisted))
	return totals, nil
}

// pendingCnpjs returns distinct organization tax ids with no address row yet.
func (r *Reconciler) pendingCnpjs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT s.cpf_cnpj
		FROM sinir.stakeholder s
		WHERE length(s.cpf_cnpj) = 14
		  AND s.endereco IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM resilead.entidade_endereco_unidade e
			WHERE e.cpf_cnpj = s.cpf_cnpj)
		ORDER BY s.cpf_cnpj
		LIMIT $1`, r.opts.BatchSize)
	if err != nil {
		return nil, eris.Wrap(err, "address: list pending cnpjs")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cnpj string
		if err := rows.Scan(&cnpj); err != nil {
			return nil, eris.Wrap(err, "address: scan cnpj")
		}
		out = append(out, cnpj)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "address: iterate cnpjs")
	}
	return out, nil
}

// resolve fans lookups out over a bounded pool. A failed lookup skips that
// CNPJ without ending the round. Results are deduped by unit plus tax id
// across the whole round, last writer wins.
func (r *Reconciler) resolve(ctx context.Context, cnpjs []string, totals *Totals) ([]partner.Address, error) {
	var mu sync.Mutex
	merged := make(map[string]partner.Address)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, raw := range cnpjs {
		cnpj := normalize.OnlyDigits(raw)
		if len(cnpj) != 14 {
			continue
		}
		g.Go(func() error {
			addrs, err := r.partners.Lookup(gctx, cnpj)
			mu.Lock()
			defer mu.Unlock()
			totals.Looked++
			if err != nil {
				totals.Failed++
				r.logger.Warn("partner lookup failed",
					zap.String("cnpj", cnpj), zap.Error(err))
				return gctx.Err()
			}
			for _, a := range addrs {
				merged[a.Unidade+"|"+a.CpfCnpj] = a
			}
			if len(addrs) == 0 {
				r.logger.Debug("no partners for cnpj", zap.String("cnpj", cnpj))
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]partner.Address, 0, len(merged))
	for _, a := range merged {
		out = append(out, a)
	}
	return out, nil
}

// persist bulk-upserts the resolved units into the per-unit address table and
// mirrors the address onto any matching stakeholder row.
func (r *Reconciler) persist(ctx context.Context, addrs []partner.Address) error {
	now := time.Now().UTC()
	unitRows := make([][]any, 0, len(addrs))
	shRows := make([][]any, 0, len(addrs))
	for _, a := range addrs {
		unitRows = append(unitRows, []any{a.Unidade, a.CpfCnpj, a.Nome, a.Endereco, now})
		shRows = append(shRows, []any{a.Unidade, a.CpfCnpj, a.Nome, a.Endereco, "address"})
	}

	if _, err := db.BulkUpsert(ctx, r.pool, db.UpsertConfig{
		Table:        "resilead.entidade_endereco_unidade",
		Columns:      []string{"unidade", "cpf_cnpj", "nome", "endereco", "updated_dt"},
		ConflictKeys: []string{"unidade", "cpf_cnpj"},
	}, unitRows); err != nil {
		return err
	}

	// Newly seen units become stakeholders too; known ones only gain the
	// address, the harvested name stays.
	if _, err := db.BulkUpsert(ctx, r.pool, db.UpsertConfig{
		Table:        "sinir.stakeholder",
		Columns:      []string{"unidade", "cpf_cnpj", "nome", "endereco", "created_by"},
		ConflictKeys: []string{"unidade", "cpf_cnpj"},
		UpdateCols:   []string{"endereco"},
	}, shRows); err != nil {
		return err
	}
	return nil
}
