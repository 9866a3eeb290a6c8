package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/haeso-app/haeso-api/internal/config"
	"github.com/haeso-app/haeso-api/internal/jwkscache"
	"github.com/haeso-app/haeso-api/pkg/api"
	"github.com/haeso-app/haeso-api/pkg/auth"
	"github.com/haeso-app/haeso-api/pkg/history"
	"github.com/haeso-app/haeso-api/pkg/jobs"
	"github.com/haeso-app/haeso-api/pkg/repository/kvstore"
	"github.com/haeso-app/haeso-api/pkg/service/emotion"
	"github.com/haeso-app/haeso-api/pkg/subscription"
	"github.com/haeso-app/haeso-api/pkg/usage"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening store")
	}
	defer store.Close()

	// Persistence-backed components.
	accountant := usage.NewAccountant(store, logger)
	historyStore := history.NewStore(store, logger)
	remote := subscription.NewKVRemoteStore(store)
	subCache := subscription.NewCache(remote, store, logger)
	payments := subscription.NewProcessor(remote, subCache, accountant, logger)

	// Identity bridge.
	minter := auth.NewMinter(cfg.AuthProjectID, cfg.AuthClientEmail, []byte(cfg.AuthPrivateKey))
	profiles := auth.NewProfileStore(store)
	mintSvc := auth.NewMintService(minter, profiles, logger)

	certsURL := cfg.GoogleCertsURL
	if certsURL == "" {
		certsURL = auth.GoogleCertsURL
	}
	provider := auth.NewTokenProvider(jwkscache.New(certsURL, logger), minter)

	bridge := auth.NewBridge(auth.BridgeConfig{
		Provider:      provider,
		KakaoAppKey:   cfg.KakaoAppKey,
		MintService:   mintSvc,
		Profiles:      profiles,
		Subscriptions: subCache,
		Logger:        logger,
	})
	defer bridge.Close()

	// Initialize GPT service
	service := emotion.NewGPTService(cfg.OpenAIAPIKey)

	handler := api.NewHandler(api.HandlerConfig{
		Service:    service,
		Bridge:     bridge,
		Mint:       mintSvc,
		Accountant: accountant,
		History:    historyStore,
		Payments:   payments,
		Logger:     logger,
	})

	cron := jobs.NewCronManager(store, logger)
	if err := cron.SetupJobs(); err != nil {
		logger.Fatal().Err(err).Msg("scheduling jobs")
	}
	cron.Start()
	defer cron.Stop()

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info().Str("addr", serverAddr).Msg("server starting")

	if err := http.ListenAndServe(serverAddr, handler.Router()); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func openStore(cfg *config.Config) (kvstore.Store, error) {
	if cfg.RedisURL != "" {
		return kvstore.NewRedisStore(cfg.RedisURL)
	}
	return kvstore.NewSQLiteStore(kvstore.SQLiteConfig{
		DatabasePath:   cfg.DatabasePath,
		MigrationsPath: cfg.MigrationsPath,
	})
}
