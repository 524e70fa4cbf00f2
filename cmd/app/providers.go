package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/wellora/wellcheck/internal/domain/analysis"
	"github.com/wellora/wellcheck/internal/domain/environment"
	"github.com/wellora/wellcheck/internal/infra/config"
	"github.com/wellora/wellcheck/internal/infra/envcache"
	"github.com/wellora/wellcheck/internal/infra/geocode/googlegeo"
	"github.com/wellora/wellcheck/internal/infra/historyrepo"
	"github.com/wellora/wellcheck/internal/infra/llm/gemini"
	"github.com/wellora/wellcheck/internal/infra/pollen/googlepollen"
	voiceclient "github.com/wellora/wellcheck/internal/infra/voice"
)

func provideAnalysisConfig(cfg *config.Config) analysis.Config {
	return analysis.Config{
		MaxAllergyHistoryLen: cfg.Analysis.MaxAllergyHistoryLen,
		MaxVoiceBase64Len:    cfg.Analysis.MaxVoiceBase64Len,
	}
}

func provideGeminiClient(cfg *config.Config) (*gemini.Client, error) {
	return gemini.NewClient(gemini.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		AttemptTimeout:  cfg.LLM.AttemptTimeout,
		MaxRetries:      cfg.LLM.MaxRetries,
		RetryDelay:      cfg.LLM.RetryDelay,
		MaxRetryDelay:   cfg.LLM.MaxRetryDelay,
	})
}

func providePollenClient(cfg *config.Config) *googlepollen.Client {
	return googlepollen.NewClient(cfg.Pollen.BaseURL, cfg.Pollen.APIKey, cfg.Pollen.Days, cfg.Pollen.Timeout)
}

func provideGeocodeClient(cfg *config.Config) *googlegeo.Client {
	return googlegeo.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.APIKey, cfg.Geocode.Timeout)
}

func provideVoiceClient(cfg *config.Config) *voiceclient.Client {
	return voiceclient.NewClient(cfg.Voice.ServiceURL, cfg.Voice.Timeout)
}

func provideEnvironmentCache(cfg *config.Config, logger *slog.Logger) environment.Cache {
	if cfg.Cache.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
			return envcache.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
			return envcache.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory cache", "error", err)
		} else {
			logger.Info("valkey forecast cache enabled", "addr", cfg.Cache.Addr)
			return envcache.NewValkeyStore(client, "wellcheck")
		}
	}
	return envcache.NewMemoryStore()
}

func provideEnvironmentService(cfg *config.Config, client *googlepollen.Client, cache environment.Cache, logger *slog.Logger) environment.Service {
	return environment.NewService(client, cache, cfg.Pollen.CacheTTL, logger)
}

func provideRecorder(cfg *config.Config, logger *slog.Logger) analysis.Recorder {
	fallback := historyrepo.NewMemoryRepository()
	dsn := strings.TrimSpace(cfg.History.Postgres.DSN)
	if dsn == "" {
		logger.Info("history postgres dsn not set, using memory recorder")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory recorder", "error", err)
		return fallback
	}
	if cfg.History.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.History.Postgres.MaxConns
	}
	if cfg.History.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.History.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory recorder", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory recorder", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("history postgres recorder enabled")
	return historyrepo.NewPostgresRepository(pool)
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Cache.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Cache.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Cache.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
