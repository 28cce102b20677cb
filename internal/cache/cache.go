// Package cache stores comparison results per (query, competitor) with an
// absolute expiry.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/price-comparison-scraper/internal/models"
)

var ErrNotFound = errors.New("cache entry not found")

const keyPrefix = "comparison:"

// Entry is one cached result list. Entries are never updated in place; a
// newer write with the same key replaces an expired one.
type Entry struct {
	Key        string                  `json:"key"`
	Query      string                  `json:"query"`
	Competitor string                  `json:"competitor"`
	Results    []models.ScrapedProduct `json:"results"`
	CreatedAt  time.Time               `json:"createdAt"`
	ExpiresAt  time.Time               `json:"expiresAt"`
}

func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store is a cache backend. Load returns ErrNotFound for absent keys.
type Store interface {
	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, entry *Entry) error
}

func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Key builds the store key for a query and competitor.
func Key(query, competitor string) string {
	return keyPrefix + url.QueryEscape(NormalizeQuery(query)) + ":" + url.QueryEscape(competitor)
}

type Cache struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:  store,
		now:    time.Now,
		logger: logger.With("component", "cache"),
	}
}

// Get returns the cached results for query and competitor. Expired entries
// and store failures are reported as misses.
func (c *Cache) Get(ctx context.Context, query, competitor string) ([]models.ScrapedProduct, bool) {
	key := Key(query, competitor)

	entry, err := c.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	if entry.Expired(c.now()) {
		c.logger.Debug("cache entry expired", "key", key, "expires_at", entry.ExpiresAt)
		return nil, false
	}

	return entry.Results, true
}

// Put stores results for ttl. Write failures are logged and returned.
func (c *Cache) Put(ctx context.Context, query, competitor string, results []models.ScrapedProduct, ttl time.Duration) error {
	now := c.now()
	entry := &Entry{
		Key:        Key(query, competitor),
		Query:      NormalizeQuery(query),
		Competitor: competitor,
		Results:    results,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	if err := c.store.Save(ctx, entry); err != nil {
		c.logger.Warn("cache write failed", "key", entry.Key, "error", err)
		return err
	}

	c.logger.Debug("cache entry stored", "key", entry.Key, "count", len(results), "expires_at", entry.ExpiresAt)
	return nil
}
