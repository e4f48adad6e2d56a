package main

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/placement-matcher/internal/clients/gemini"
	"github.com/maxaizer/placement-matcher/internal/config"
	"github.com/maxaizer/placement-matcher/internal/logger"
	"github.com/maxaizer/placement-matcher/internal/metrics"
	"github.com/maxaizer/placement-matcher/internal/repositories"
	"github.com/maxaizer/placement-matcher/internal/services"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"os/signal"
	"syscall"
)

func createJustificationService(ctx context.Context, cfg *config.Config) (*services.JustificationService, func()) {

	options := services.JustificationOptions{
		RequestTimeout: cfg.AI.RequestTimeout,
		MaxRetries:     cfg.AI.MaxRetries,
		RetryBackoff:   cfg.AI.RetryBackoff,
		CacheTTL:       cfg.Matching.ReasonCacheTTL,
	}

	if !cfg.AI.Enabled {
		log.Info("AI is disabled, match reasons will be built from templates")
		return services.NewJustificationService(nil, options), func() {}
	}

	aiClient, err := gemini.NewClient(ctx, cfg.AI.Key, cfg.AI.Model)
	if err != nil {
		log.Fatalf("can't create AI client: %v", err)
	}
	aiClient.SetMinuteRateLimit(cfg.AI.MaxRequestsPerMinute)
	aiClient.SetDayRateLimit(cfg.AI.MaxRequestsPerDay)

	return services.NewJustificationService(aiClient, options), func() {
		if err := aiClient.Close(); err != nil {
			log.Error(err)
		}
	}
}

func createRunLock(ctx context.Context, cfg config.RedisConfig) (services.RunLock, func()) {

	if !cfg.Enabled() {
		return services.NewLocalRunLock(), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("can't connect to redis at %s: %v", cfg.Addr, err)
	}
	log.Infof("match runs are locked in redis at %s", cfg.Addr)

	return services.NewRedisRunLock(client, cfg.LockTTL), func() { _ = client.Close() }
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(ctx, cfg.Logger)
	defer logger.Cleanup()

	metrics.StartMetricsServer(cfg.Metrics.Addr)

	dbContext, err := repositories.NewDbContext(cfg.DB)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	err = dbContext.Migrate()
	if err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	jobs := repositories.NewJobsRepository(dbContext.DB)
	students := repositories.NewStudentsRepository(dbContext.DB)

	justifications, closeAI := createJustificationService(ctx, cfg)
	defer closeAI()

	runLock, closeLock := createRunLock(ctx, cfg.Redis)
	defer closeLock()

	bus := EventBus.New()

	runner := services.NewMatchRunner(jobs, students, justifications, runLock, bus, services.MatchRunnerOptions{
		Weights:              cfg.Matching.Weights,
		MinSkillMatchPercent: cfg.Matching.MinSkillMatchPercent,
		EnrichTopN:           cfg.Matching.EnrichTopN,
		TopMatches:           cfg.Matching.TopMatches,
		ScoringWorkers:       cfg.Matching.ScoringWorkers,
		EnrichmentWorkers:    cfg.Matching.EnrichmentWorkers,
		ActiveJobsPageSize:   cfg.Matching.ActiveJobsPageSize,
	})

	scheduler, err := services.NewMatchScheduler(runner, bus, cfg.Matching.RefreshSchedule)
	if err != nil {
		log.Fatalf("can't create match scheduler: %v", err)
	}

	watcher, err := services.NewJobWatcher(jobs, runner, bus, cfg.Matching.PublishRetryAfter,
		cfg.Matching.ActiveJobsPageSize)
	if err != nil {
		log.Fatalf("can't create job watcher: %v", err)
	}
	if err := scheduler.Watch(watcher, cfg.Matching.PollSchedule); err != nil {
		log.Fatalf("can't start job watcher: %v", err)
	}
	go scheduler.RefreshNow()

	<-ctx.Done()

	log.Info("Shutting down services...")
	scheduler.Stop()
	log.Info("Services stopped.")
}
