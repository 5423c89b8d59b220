package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pastolab/herdtrack/internal/config"
	"github.com/pastolab/herdtrack/internal/database"
	"github.com/pastolab/herdtrack/internal/modules/farms"
	"github.com/pastolab/herdtrack/internal/modules/herd"
	"github.com/pastolab/herdtrack/internal/modules/kpi"
	"github.com/pastolab/herdtrack/internal/modules/locations"
	"github.com/pastolab/herdtrack/internal/modules/lots"
	"github.com/pastolab/herdtrack/internal/modules/market"
	"github.com/pastolab/herdtrack/internal/scheduler"
	"github.com/pastolab/herdtrack/internal/server"
	"github.com/pastolab/herdtrack/pkg/logger"
)

func main() {
	// Default logger until configuration is loaded
	log := logger.New(logger.Config{Level: "info", Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Reconfigure with LOG_LEVEL and DEV_MODE applied
	log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting HerdTrack")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	// Database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Repositories
	farmRepo := farms.NewRepository(db.Conn(), log)
	animalRepo := herd.NewAnimalRepository(db.Conn(), log)
	eventRepo := herd.NewEventRepository(db.Conn(), log)
	locationRepo := locations.NewRepository(db.Conn(), log)

	// Services
	agg := kpi.NewAggregator(cfg.AnimalUnitWeightKg)
	stockService := herd.NewService(animalRepo, eventRepo, log)
	locationService := locations.NewService(db.Conn(), locationRepo, stockService, agg, log)
	lotService := lots.NewService(animalRepo, eventRepo, log)

	// Market price store - a missing CSV is not fatal, the store stays empty
	priceStore := market.NewStore(cfg.MarketPricesPath, log)
	if err := priceStore.Load(); err != nil {
		log.Warn().Err(err).Str("path", cfg.MarketPricesPath).Msg("Failed to load market prices")
	} else {
		log.Info().Int("records", priceStore.Len()).Msg("Market prices loaded")
	}

	// Background jobs
	sched := scheduler.New(log)

	priceReload := scheduler.NewPriceReloadJob(priceStore, log)
	if err := sched.AddJob("@hourly", priceReload); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price reload job")
	}

	herdAudit := scheduler.NewHerdAuditJob(database.NewHerdValidator(db.Conn()), farmRepo, stockService, log)
	if err := sched.AddJob("0 3 * * *", herdAudit); err != nil {
		log.Fatal().Err(err).Msg("Failed to register herd audit job")
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Config:    cfg,
		DB:        db,
		Log:       log,
		Scheduler: sched,

		FarmHandler:     farms.NewHandler(farmRepo, log),
		HerdHandler:     herd.NewHandler(stockService, animalRepo, eventRepo, log),
		LocationHandler: locations.NewHandler(locationRepo, locationService, log),
		LotHandler:      lots.NewHandler(lotService, log),
		MarketHandler:   market.NewHandler(priceStore, log),
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
