package harvest

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/resilead/sinir-cli/internal/fetcher"
	"github.com/resilead/sinir-cli/internal/model"
)

// ClaimQueue is the queue surface the processor needs.
type ClaimQueue interface {
	ListPending(ctx context.Context, limit int) ([]model.FetchJob, error)
	Claim(ctx context.Context, url, workerID string) (bool, error)
	Complete(ctx context.Context, url string) error
	Fail(ctx context.Context, url, lastError string) error
}

// ManifestParser turns workbook bytes into records.
type ManifestParser interface {
	Parse(data []byte) []model.ManifestRecord
}

// Stager persists parse results.
type Stager interface {
	StageManifests(ctx context.Context, records []model.ManifestRecord, createdBy string) error
	InsertDiscoveredStakeholders(ctx context.Context, stakeholders []model.Stakeholder, createdBy string) (int, error)
}

// Options tunes the processor.
type Options struct {
	BatchSize   int
	Concurrency int
	Drain       bool
}

// Stats counts one run's outcomes.
type Stats struct {
	Claimed   atomic.Int64
	Skipped   atomic.Int64
	Completed atomic.Int64
	Failed    atomic.Int64
	Manifests atomic.Int64
}

// Processor drains the work queue: claim, fetch, parse, stage, discover.
type Processor struct {
	queue    ClaimQueue
	fetcher  fetcher.Fetcher
	parser   ManifestParser
	store    Stager
	opts     Options
	workerID string
	logger   *zap.Logger
}

// NewProcessor builds a processor with a process-unique worker identity.
func NewProcessor(q ClaimQueue, f fetcher.Fetcher, p ManifestParser, store Stager, opts Options) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Processor{
		queue:    q,
		fetcher:  f,
		parser:   p,
		store:    store,
		opts:     opts,
		workerID: fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString()[:8]),
		logger:   zap.L().With(zap.String("component", "harvest")),
	}
}

// Run processes pending jobs until the batch (or with Drain, the queue) is
// exhausted. A job failure marks that job ERROR and never stops the run.
func (p *Processor) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	for {
		batch, err := p.queue.ListPending(ctx, p.opts.BatchSize)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			break
		}
		p.logger.Info("processing batch",
			zap.Int("jobs", len(batch)),
			zap.String("worker_id", p.workerID))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.opts.Concurrency)
		for _, job := range batch {
			job := job
			g.Go(func() error {
				p.processJob(gctx, job, stats)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
		if !p.opts.Drain {
			break
		}
	}
	p.logger.Info("processing completed",
		zap.Int64("claimed", stats.Claimed.Load()),
		zap.Int64("skipped", stats.Skipped.Load()),
		zap.Int64("completed", stats.Completed.Load()),
		zap.Int64("failed", stats.Failed.Load()),
		zap.Int64("manifests", stats.Manifests.Load()))
	return stats, nil
}

func (p *Processor) processJob(ctx context.Context, job model.FetchJob, stats *Stats) {
	claimed, err := p.queue.Claim(ctx, job.URL, p.workerID)
	if err != nil {
		p.logger.Error("claim failed", zap.String("url", job.URL), zap.Error(err))
		stats.Failed.Add(1)
		return
	}
	if !claimed {
		stats.Skipped.Add(1)
		return
	}
	stats.Claimed.Add(1)

	if err := p.processClaimed(ctx, job, stats); err != nil {
		stats.Failed.Add(1)
		p.logger.Warn("job failed", zap.String("url", job.URL), zap.Error(err))
		if ferr := p.queue.Fail(ctx, job.URL, err.Error()); ferr != nil {
			p.logger.Error("failed to mark job", zap.String("url", job.URL), zap.Error(ferr))
		}
		return
	}

	if err := p.queue.Complete(ctx, job.URL); err != nil {
		stats.Failed.Add(1)
		p.logger.Error("failed to complete job", zap.String("url", job.URL), zap.Error(err))
		return
	}
	stats.Completed.Add(1)
}

func (p *Processor) processClaimed(ctx context.Context, job model.FetchJob, stats *Stats) error {
	data, err := p.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return err
	}

	// A bad workbook is an empty report, not a failure.
	records := p.parser.Parse(data)
	if len(records) == 0 {
		p.logger.Debug("no manifests in report", zap.String("url", job.URL))
		return nil
	}
	stats.Manifests.Add(int64(len(records)))

	if err := p.store.StageManifests(ctx, records, p.workerID); err != nil {
		return err
	}

	discovered := discoverStakeholders(records, job.Unidade)
	if len(discovered) > 0 {
		if _, err := p.store.InsertDiscoveredStakeholders(ctx, discovered, "system"); err != nil {
			return err
		}
	}
	return nil
}

// discoverStakeholders collects the distinct counterparties on a report,
// excluding the harvested unit itself.
func discoverStakeholders(records []model.ManifestRecord, ownUnidade string) []model.Stakeholder {
	seen := make(map[string]bool)
	var out []model.Stakeholder
	for _, rec := range records {
		for _, party := range []model.Party{rec.Gerador, rec.Transportador, rec.Destinador} {
			if party.Unidade == ownUnidade {
				continue
			}
			key := party.Unidade + "|" + party.CpfCnpj + "|" + party.Nome
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, model.Stakeholder{
				Unidade: party.Unidade,
				CpfCnpj: party.CpfCnpj,
				Nome:    party.Nome,
			})
		}
	}
	return out
}
