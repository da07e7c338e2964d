package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"telegram-research-relay/internal/application"
	"telegram-research-relay/internal/config"
	"telegram-research-relay/internal/domain/model"
	"telegram-research-relay/internal/infra/adapters/kube"
	tele "telegram-research-relay/internal/infra/adapters/telegram"
	"telegram-research-relay/internal/infra/i18n"
	"telegram-research-relay/internal/infra/logging"
	"telegram-research-relay/internal/infra/metrics"
	red "telegram-research-relay/internal/infra/redis"
	"telegram-research-relay/internal/infra/registry"
	"telegram-research-relay/internal/infra/sched"
	"telegram-research-relay/internal/infra/web"
	"telegram-research-relay/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted queries)")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the environment is read")
	flag.Parse()

	// A missing .env is normal in the cluster.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("dotenv: %v", err)
	}

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().
		Str("version", version).
		Str("token", logging.Redact(cfg.Bot.Token, false)).
		Str("model_id", cfg.Research.ModelID).
		Bool("dev", cfg.Runtime.Dev).
		Msg("starting research relay")

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Translator ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Locale)
	if err != nil {
		logger.Fatal().Err(err).Str("locale", cfg.Bot.Locale).Msg("translator")
	}

	// ---- Cluster ----
	clientset, err := kube.NewClientset(cfg.Kube.Kubeconfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("kubernetes")
	}
	cluster := kube.NewCluster(clientset, kube.Namespace, logger)

	// ---- Redis (optional) ----
	var limiter application.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Info().Msg("redis not configured; per-chat rate limit disabled")
	}

	// ---- Telegram ----
	bot, err := tele.NewRealTelegramBotAdapter(cfg.Bot, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}

	// ---- Use cases ----
	jobs := registry.NewMemoryRegistry()
	builder := usecase.NewJobBuilder(usecase.JobBuilderConfig{
		Image:      cfg.Research.Image,
		ModelID:    cfg.Research.ModelID,
		SecretName: cfg.Research.SecretName,
		Resources: model.Resources{
			CPURequest:    cfg.Research.CPURequest,
			CPULimit:      cfg.Research.CPULimit,
			MemoryRequest: cfg.Research.MemoryRequest,
			MemoryLimit:   cfg.Research.MemoryLimit,
		},
	})
	researchUC := usecase.NewResearchUseCase(builder, cluster, jobs, bot, tr, logger, cfg.Runtime.Dev)
	reconcileUC := usecase.NewReconcileUseCase(cluster, jobs, bot, tr, cfg.Research.MaxStatusFailures, logger)

	// ---- Facade ----
	facade := application.NewBotFacade(
		researchUC, limiter, red.ChatResearchKey, tr,
		cfg.Research.RateLimit, cfg.Research.RateLimitSpan, logger,
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bot.StartPolling(ctx, facade); err != nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Reconcile worker ----
	reconciler := sched.NewReconcileWorker(cfg.Research.PollInterval, reconcileUC, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("reconcile worker stopped")
		}
	}()

	// ---- Admin server ----
	admin := web.NewServer(jobs, cfg.Admin.APIKey, cfg.Runtime.Dev, logger)
	go func() {
		if err := admin.Start(cfg.Admin.Port); err != nil {
			logger.Error().Err(err).Msg("admin server error")
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("admin server shutdown")
	}
	wg.Wait()

	// Tracking is in memory only; these chats will not hear back.
	if n := jobs.Len(); n > 0 {
		for _, j := range jobs.Snapshot() {
			logger.Warn().Str("job_id", j.ID).Int64("chat_id", j.ChatID).Msg("abandoning tracked job")
		}
		logger.Warn().Int("count", n).Msg("exiting with jobs still in flight")
	}
	logger.Info().Msg("bye")
}
