package profiles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/linetrace/linelist-tracker/internal/common"
	"github.com/linetrace/linelist-tracker/internal/entity"
)

// Key prefix for persisted profiles
const profileKeyPrefix = "linelist:profile:"

// Store persists FormatProfiles in a key-value store keyed by scope.
// Writes are last-write-wins; only one operator edits a given scope at a
// time, so there is no locking.
type Store struct {
	client *redis.Client
}

// NewStore creates a redis-backed profile store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Save serializes and stores the profile under the scope key.
func (s *Store) Save(ctx context.Context, scope string, profile entity.FormatProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return common.WrapError(err, "marshal profile")
	}
	return common.WrapError(s.client.Set(ctx, profileKeyPrefix+scope, data, 0).Err(), "save profile")
}

// Load retrieves the profile stored under the scope key. Returns
// common.ErrNotFound when nothing has been saved for that scope.
func (s *Store) Load(ctx context.Context, scope string) (entity.FormatProfile, error) {
	data, err := s.client.Get(ctx, profileKeyPrefix+scope).Bytes()
	if err == redis.Nil {
		return entity.FormatProfile{}, common.ErrNotFound
	}
	if err != nil {
		return entity.FormatProfile{}, fmt.Errorf("load profile: %w", err)
	}

	var profile entity.FormatProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return entity.FormatProfile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return profile, nil
}

// Delete removes the profile stored under the scope key.
func (s *Store) Delete(ctx context.Context, scope string) error {
	if err := s.client.Del(ctx, profileKeyPrefix+scope).Err(); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
