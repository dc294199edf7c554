package main

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"fiscora/internal/cache"
	"fiscora/internal/config"
	"fiscora/internal/engine"
	"fiscora/internal/engine/tesseract"
	"fiscora/internal/handler"
	"fiscora/internal/port"
	"fiscora/internal/preprocess"
	"fiscora/internal/repository/postgres"
	"fiscora/internal/router"
	"fiscora/internal/service"
	s3storage "fiscora/internal/storage/s3"
	"fiscora/internal/validator"
	"fiscora/internal/validator/fiscal"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Database is optional: without it batches stay in memory and the
	// built-in validation rules run at their defaults.
	var db *sqlx.DB
	var batchRepo port.BatchRepository
	var ruleRepo port.RuleRepository
	if cfg.DB.Enabled {
		db, err = postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		batchRepo = postgres.NewBatchJobRepo(db)
		ruleRepo = postgres.NewValidationRuleRepo(db)
	}

	// Result cache
	var resultCache port.ResultCache
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		resultCache = cache.NewRedisCache(client)
		log.Printf("using redis result cache at %s", cfg.Redis.Addr)
	default:
		resultCache = cache.NewMemoryCache()
		log.Printf("using in-memory result cache")
	}

	// OCR engines
	registry := engine.NewRegistry()
	registry.Register(tesseract.New(cfg.OCR.Languages...))

	autoOrder := cfg.OCR.FallbackEngines
	if len(autoOrder) == 0 {
		autoOrder = registry.Names()
	}
	var selector port.EngineSelector = engine.ConfigOrderSelector{Order: autoOrder}
	if cfg.OCR.AutoSizeThresholdKB > 0 && len(autoOrder) > 1 {
		// Large scans go to the configured order reversed: the accurate
		// engines earn their cost there.
		reversed := make([]string, len(autoOrder))
		for i, n := range autoOrder {
			reversed[len(autoOrder)-1-i] = n
		}
		selector = engine.SizeHeuristicSelector{
			ThresholdBytes: cfg.OCR.AutoSizeThresholdKB * 1024,
			SmallOrder:     autoOrder,
			LargeOrder:     reversed,
		}
	}

	// Preprocessing
	pipeline := preprocess.NewPipeline(preprocess.NewRaster())

	// Validation
	rules := validator.NewRegistry()
	for _, rule := range fiscal.BuiltinRules() {
		rules.Register(rule)
	}
	validation := validator.NewEngine(rules, ruleRepo, fiscal.FormatIssues)
	validation.RegisterComparator(fiscal.YearComparator{})
	validation.RegisterComparator(fiscal.ExactYearComparator{})

	// Document storage
	store, err := s3storage.NewDocumentStore(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Services
	orchestrator := service.NewOrchestrator(registry, selector, pipeline)
	extraction := service.NewExtractionService(
		store, resultCache, orchestrator, validation,
		time.Duration(cfg.Cache.DefaultTTLSecs)*time.Second,
	)
	batches := service.NewBatchCoordinator(extraction, batchRepo, cfg.Batch.Concurrency)

	// Handlers
	extractH := handler.NewExtractHandler(extraction, cfg)
	batchH := handler.NewBatchHandler(batches, cfg)
	cacheH := handler.NewCacheHandler(extraction, cfg)
	engineH := handler.NewEngineHandler(registry)
	healthH := handler.NewHealthHandler(db, registry)

	r := router.Setup(cfg.CORS.AllowedOrigins, extractH, batchH, cacheH, engineH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
