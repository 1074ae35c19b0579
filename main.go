package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"reportchat/internal/api"
	"reportchat/internal/auth"
	"reportchat/internal/billing"
	"reportchat/internal/config"
	"reportchat/internal/provider"
	"reportchat/internal/redis"
	"reportchat/internal/service/chat"
	"reportchat/internal/storage"
	"reportchat/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	dbDriver := flag.String("db", "sqlite", "database driver to use")
	flag.Parse()

	path := *configPath
	if env := os.Getenv("REPORTCHAT_CONFIG"); env != "" {
		path = env
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := storage.Open(*dbDriver, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, *dbDriver); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// Redis is a soft dependency: without it turn locks and question caching
	// fall back to in-process behavior.
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, continuing without it: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	chatProvider, ok := cfg.Providers[cfg.Chat.Provider]
	if !ok {
		log.Fatalf("provider %q is not configured", cfg.Chat.Provider)
	}
	llm, err := provider.NewCompletionClient(cfg.Chat.Provider, chatProvider)
	if err != nil {
		log.Fatalf("init completion client: %v", err)
	}
	threads := provider.NewAssistantsClient(chatProvider.BaseURL, chatProvider.APIKey)

	store := chat.NewService(db)
	monitor := chat.NewMonitor(threads, cfg.Chat.BudgetWindow, cfg.Chat.CharsPerToken, cfg.Chat.RotationThreshold())
	summarizer := chat.NewSummarizer(llm, cfg.Chat.SummaryMaxTokens)
	rotator := chat.NewRotator(threads, summarizer, cfg.Chat.SummaryWindow)
	orch := chat.NewOrchestrator(
		store, threads, monitor, rotator,
		time.Duration(cfg.Chat.PollIntervalSeconds)*time.Second,
		cfg.Chat.PollMaxAttempts,
	)

	purchases := billing.NewService(db)
	payments := billing.NewStripeProvider(cfg.Billing.StripeAPIKey)

	authSvc := auth.NewService(db, time.Duration(cfg.BasicConfig.AccessTokenTTL)*time.Hour)
	authSvc.StartSweeper(context.Background(), time.Duration(cfg.BasicConfig.TokenSweepInterval)*time.Minute)

	limiter := worker.NewTurnLimiter(cfg.BasicConfig.MaxConcurrentTurns)
	guard := worker.NewTurnGuard(rdb, 0)

	handler := api.NewHandler(cfg, store, orch, llm, purchases, payments, authSvc, rdb, limiter, guard)

	r := gin.Default()
	handler.Register(r)

	log.Printf("listening on %s", cfg.BasicConfig.ServerAddress)
	if err := r.Run(cfg.BasicConfig.ServerAddress); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
