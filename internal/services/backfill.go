package services

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"cspr_rewarder/internal/models"
	"cspr_rewarder/internal/repository"
	"cspr_rewarder/internal/reward"
	"cspr_rewarder/internal/utils"
)

// Backfill scans every current delegation to the watched validator and rewards
// the ones the stream listener missed. The on-chain NFT ownership record is the
// authoritative check here; the in-memory ledger only guards against overlap
// with the live stream path.
type Backfill struct {
	api         repository.ReadAPI
	dispatcher  *reward.Dispatcher
	concurrency int
}

func NewBackfill(api repository.ReadAPI, dispatcher *reward.Dispatcher, concurrency int) *Backfill {
	return &Backfill{
		api:         api,
		dispatcher:  dispatcher,
		concurrency: concurrency,
	}
}

// Reconcile pages through the delegation list, checks each delegator's NFT
// ownership and dispatches a reward job for every unrewarded one. It returns
// the number of jobs dispatched. A failure for a single page or delegator is
// logged and skipped. If the first page cannot be fetched there is nothing to
// page through, so the run is abandoned with an error; the next scheduled run
// retries from scratch either way.
func (b *Backfill) Reconcile(ctx context.Context) (int, error) {
	log.Println("Checking for backfillable delegations")

	delegations, pageCount, err := b.api.GetDelegations(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch delegations: %w", err)
	}
	for page := 2; page <= pageCount; page++ {
		pageDelegations, _, err := b.api.GetDelegations(ctx, page)
		if err != nil {
			log.Printf("Failed to fetch delegations page %d, skipping: %v", page, err)
			continue
		}
		delegations = append(delegations, pageDelegations...)
	}

	bar := progressbar.Default(int64(len(delegations)))
	defer bar.Finish()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	var dispatched atomic.Int64
	for _, delegation := range delegations {
		g.Go(func() error {
			defer bar.Add(1)
			if b.reconcileDelegator(ctx, delegation) {
				dispatched.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("Backfill pass complete: %d job(s) dispatched for %d delegation(s)", dispatched.Load(), len(delegations))
	return int(dispatched.Load()), nil
}

func (b *Backfill) reconcileDelegator(ctx context.Context, delegation models.Delegation) bool {
	owned, err := b.api.OwnsNFT(ctx, delegation.PublicKey)
	if err != nil {
		log.Printf("Failed to check NFT ownership for %s, skipping: %v", delegation.PublicKey, err)
		return false
	}
	if owned {
		return false
	}

	motes, ok := new(big.Int).SetString(delegation.Stake, 10)
	if !ok {
		log.Printf("Invalid stake amount for %s, skipping: %q", delegation.PublicKey, delegation.Stake)
		return false
	}

	log.Println("Backfilling NFT to: " + delegation.PublicKey)
	return b.dispatcher.Dispatch(models.RewardJob{
		Delegator: delegation.PublicKey,
		StakeCSPR: utils.ConvertMotesToCSPR(motes),
	})
}
