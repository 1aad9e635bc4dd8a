package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"cspr_rewarder/internal/config"
	"cspr_rewarder/internal/models"
	"cspr_rewarder/internal/providers"
	"cspr_rewarder/internal/repository"
	"cspr_rewarder/internal/reward"
	"cspr_rewarder/internal/services"
	"cspr_rewarder/internal/stream"
	"cspr_rewarder/internal/utils"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running rewarder: %v", err)
	}
}

func run() error {
	config := config.LoadConfig()

	keys, err := providers.LoadKeyPair(config.KeyPath)
	if err != nil {
		return fmt.Errorf("failed to load signing keys: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger := reward.NewLedger()
	readAPI := repository.NewCsprCloudClient(config)

	var receipts reward.ReceiptStore
	if config.Db.Host != "" {
		dbRepository, err := repository.ConnectToDb(config)
		if err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}
		defer dbRepository.Disconnect()
		receipts = dbRepository

		rewarded, err := dbRepository.ListRewardedDelegators(ctx)
		if err != nil {
			log.Printf("Failed to warm ledger from receipts: %v", err)
		}
		for _, delegator := range rewarded {
			ledger.MarkRewarded(delegator)
		}
	}

	pipeline := reward.NewPipeline(
		providers.NewOpenAIClient(config.OpenAIKey, config.ImagePath, config.ImagePrompt),
		providers.NewFilebaseClient(config.FilebaseKey, config.FilebaseSecret, config.FilebaseBucket),
		providers.NewCasperClient(config, keys),
		config.FilebaseGateway,
		func() string { return fmt.Sprintf("steuer-nft-%d", time.Now().UnixMilli()) },
	)
	dispatcher := reward.NewDispatcher(ctx, pipeline, ledger, receipts, config.ConcurrentJobs)
	backfill := services.NewBackfill(readAPI, dispatcher, config.ConcurrentJobs)

	runBackfill := func() {
		if _, err := backfill.Reconcile(ctx); err != nil {
			log.Printf("Backfill pass failed: %v", err)
		}
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(config.CronSchedule, func() {
		runBackfill()
		utils.PrintNextExecution(c)
	}); err != nil {
		return fmt.Errorf("failed to schedule backfill: %w", err)
	}

	runBackfill()
	c.Start()
	utils.PrintNextExecution(c)

	classifier := stream.NewClassifier(config.Validator)
	handler := func(event models.DelegationEvent) {
		dispatcher.Dispatch(models.RewardJob{
			Delegator: event.Delegator,
			StakeCSPR: utils.ConvertMotesToCSPR(event.StakeMotes),
		})
	}

	streamURL := config.StreamURL + "deploys?contract_package_hash=" + config.AuctionContract
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- stream.Listen(ctx, streamURL, config.APIKey, config.HeartbeatDeadline, config.ReconnectAttempts, classifier, handler)
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		cancel()
		c.Stop()
		dispatcher.Wait()
		return nil
	case err := <-streamErr:
		// Fail fast on any stream disruption; the supervisor restarts us and
		// the next backfill pass covers the gap. In-flight jobs are abandoned.
		c.Stop()
		if err != nil {
			return fmt.Errorf("stream terminated: %w", err)
		}
		return nil
	}
}
