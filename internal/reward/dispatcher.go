package reward

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"cspr_rewarder/internal/models"
)

// ReceiptStore records completed mints. The zero-value nop store is used when
// no database is configured.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, receipt models.MintReceipt) error
}

// Dispatcher fans reward jobs out to a bounded set of workers. Both the stream
// path and the backfill path dispatch through it, so the ledger's acquire and
// release stay the single serialization point for a delegator.
type Dispatcher struct {
	pipeline *Pipeline
	ledger   *Ledger
	receipts ReceiptStore
	group    *errgroup.Group
	ctx      context.Context
}

func NewDispatcher(ctx context.Context, pipeline *Pipeline, ledger *Ledger, receipts ReceiptStore, workers int) *Dispatcher {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	return &Dispatcher{
		pipeline: pipeline,
		ledger:   ledger,
		receipts: receipts,
		group:    group,
		ctx:      ctx,
	}
}

// Dispatch schedules one reward job and reports whether it was accepted.
// Duplicates (already rewarded or currently in flight) are rejected without
// blocking. A job failure never propagates; it is logged and the ledger entry
// is cleared so the next backfill pass can retry the delegator.
func (d *Dispatcher) Dispatch(job models.RewardJob) bool {
	if !d.ledger.TryAcquire(job.Delegator) {
		log.Printf("Skipping delegator %s: already rewarded or in flight", job.Delegator)
		return false
	}

	d.group.Go(func() error {
		receipt, err := d.pipeline.Run(d.ctx, job)
		if err != nil {
			d.ledger.Release(job.Delegator, false)
			log.Printf("Reward job for %s failed: %v", job.Delegator, err)
			return nil
		}
		d.ledger.Release(job.Delegator, true)

		if d.receipts != nil {
			if err := d.receipts.SaveReceipt(d.ctx, receipt); err != nil {
				log.Printf("Failed to save mint receipt for %s: %v", job.Delegator, err)
			}
		}
		return nil
	})
	return true
}

// Wait blocks until every dispatched job has finished.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}
