package environment

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Client fetches a normalized pollen forecast for a coordinate.
type Client interface {
	Forecast(ctx context.Context, lat, lon float64) (Forecast, error)
}

// Cache stores derived summaries keyed by rounded coordinate.
type Cache interface {
	Get(ctx context.Context, key string) (Summary, bool, error)
	Set(ctx context.Context, key string, summary Summary, ttl time.Duration) error
}

// Service produces environmental summaries. Upstream failures are contained:
// Summary never surfaces as an error to callers.
type Service interface {
	Summary(ctx context.Context, lat, lon float64) Summary
}

type service struct {
	client   Client
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewService wires the environmental data adapter.
func NewService(client Client, cache Cache, cacheTTL time.Duration, logger *slog.Logger) Service {
	return &service{
		client:   client,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With("component", "environment.service"),
	}
}

func (s *service) Summary(ctx context.Context, lat, lon float64) Summary {
	key := cacheKey(lat, lon)
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("forecast cache read failed", "error", err)
		} else if ok {
			return cached
		}
	}

	forecast, err := s.client.Forecast(ctx, lat, lon)
	if err != nil {
		s.logger.Warn("pollen forecast unavailable", "stage", "pollen", "error", err)
		return ErrorSummary(err.Error())
	}

	summary := Summarize(forecast)
	if summary.Error != "" {
		s.logger.Warn("pollen forecast empty", "stage", "pollen", "reason", summary.Error)
		return summary
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("forecast cache write failed", "error", err)
		}
	}
	return summary
}

// cacheKey rounds to 3 decimals (~110m) so nearby requests share an entry.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("pollen:%.3f:%.3f", lat, lon)
}
