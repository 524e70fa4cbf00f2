package envcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/wellora/wellcheck/internal/domain/environment"
)

// ValkeyStore caches derived pollen summaries in a Valkey-compatible
// database so replicas share one upstream quota.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a cache backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "wellcheck"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Get implements environment.Cache.
func (s *ValkeyStore) Get(ctx context.Context, key string) (environment.Summary, bool, error) {
	cmd := s.client.B().Get().Key(s.entryKey(key)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return environment.Summary{}, false, nil
		}
		return environment.Summary{}, false, err
	}
	var summary environment.Summary
	if err := json.Unmarshal([]byte(payload), &summary); err != nil {
		return environment.Summary{}, false, err
	}
	return summary, true, nil
}

// Set implements environment.Cache.
func (s *ValkeyStore) Set(ctx context.Context, key string, summary environment.Summary, ttl time.Duration) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.entryKey(key)).Value(string(payload))
	if ttl > 0 {
		return s.client.Do(ctx, builder.Ex(ttl).Build()).Error()
	}
	return s.client.Do(ctx, builder.Build()).Error()
}

func (s *ValkeyStore) entryKey(key string) string {
	return s.prefix + ":" + key
}
