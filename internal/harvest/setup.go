package harvest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/strategy"
)

// Enqueuer is the queue surface setup needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, unidade, createdBy string, urls []string) (int, error)
}

// Setup plans download windows for every stakeholder and enqueues the
// resulting report URLs. Units already covered through yesterday produce
// nothing. Returns the number of jobs actually enqueued.
func Setup(ctx context.Context, store *Store, queue Enqueuer, now time.Time) (int, error) {
	logger := zap.L().With(zap.String("component", "harvest"))

	stakeholders, err := store.ListStakeholders(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, sh := range stakeholders {
		plan := strategy.Build(sh.Unidade, sh.DataFinal, now)
		if len(plan.Periods) == 0 {
			continue
		}
		n, err := queue.Enqueue(ctx, sh.Unidade, "setup", plan.URLs)
		if err != nil {
			return total, err
		}
		total += n
		if err := store.UpdateStakeholderRange(ctx, sh.Unidade, sh.CpfCnpj, plan.Start, plan.End); err != nil {
			return total, err
		}
		logger.Info("planned windows",
			zap.String("unidade", sh.Unidade),
			zap.Int("periods", len(plan.Periods)),
			zap.Int("enqueued", n))
	}
	logger.Info("setup complete",
		zap.Int("stakeholders", len(stakeholders)), zap.Int("enqueued", total))
	return total, nil
}
