package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const maxMemcacheKey = 250

// MemcacheClient is the subset of the gomemcache client used by
// MemcacheStore.
type MemcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

type MemcacheStore struct {
	client MemcacheClient
	now    func() time.Time
}

func NewMemcacheStore(client MemcacheClient) *MemcacheStore {
	return &MemcacheStore{client: client, now: time.Now}
}

// memcacheKey shortens keys beyond the protocol limit.
func memcacheKey(key string) string {
	if len(key) <= maxMemcacheKey {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (s *MemcacheStore) Load(_ context.Context, key string) (*Entry, error) {
	item, err := s.client.Get(memcacheKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s from memcache: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return &entry, nil
}

func (s *MemcacheStore) Save(_ context.Context, entry *Entry) error {
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	// Relative expirations above 30 days are read as unix timestamps.
	seconds := int64(math.Ceil(ttl.Seconds()))
	var expiration int32
	if seconds > 30*24*60*60 {
		expiration = int32(entry.ExpiresAt.Unix())
	} else {
		expiration = int32(seconds)
	}

	err = s.client.Set(&memcache.Item{
		Key:        memcacheKey(entry.Key),
		Value:      data,
		Expiration: expiration,
	})
	if err != nil {
		return fmt.Errorf("failed to set %s in memcache: %w", entry.Key, err)
	}
	return nil
}
