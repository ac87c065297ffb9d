// Package cache memoizes computed analyses in a blob store. Entries are JSON
// documents that expire once their TTL has elapsed; expired entries are
// ignored on read and removed by SweepExpired.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"stockpulse/internal/blobstore"
	apierrors "stockpulse/internal/errors"
	"stockpulse/internal/infrastructure"
	"stockpulse/pkg/contracts/domain"
)

// ErrCacheMiss is returned by Get when no live entry exists for a key
var ErrCacheMiss = errors.New("cache miss")

// DefaultTTL is used unless WithTTL overrides it
const DefaultTTL = 24 * time.Hour

// DefaultPrefix namespaces entries inside a shared store
const DefaultPrefix = "cache/"

// ResultCache is a TTL-aware view over a blob store
type ResultCache struct {
	store   blobstore.Store
	prefix  string
	ttl     time.Duration
	enabled bool
	backend string
	now     func() time.Time
	logger  *slog.Logger
	metrics *infrastructure.AnalysisMetrics
}

// Option configures a ResultCache
type Option func(*ResultCache)

// WithTTL sets the lifetime of new entries. Zero is allowed and makes entries
// expire as soon as any time passes.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResultCache) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// WithPrefix sets the key namespace
func WithPrefix(prefix string) Option {
	return func(c *ResultCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithEnabled turns the cache on or off. A disabled cache always misses and
// drops writes.
func WithEnabled(enabled bool) Option {
	return func(c *ResultCache) { c.enabled = enabled }
}

// WithBackendName labels stats with the store backend
func WithBackendName(name string) Option {
	return func(c *ResultCache) { c.backend = name }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *ResultCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *infrastructure.AnalysisMetrics) Option {
	return func(c *ResultCache) { c.metrics = m }
}

// New creates a ResultCache over store
func New(store blobstore.Store, opts ...Option) *ResultCache {
	c := &ResultCache{
		store:   store,
		prefix:  DefaultPrefix,
		ttl:     DefaultTTL,
		enabled: true,
		backend: "memory",
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "result_cache"))
	return c
}

// Enabled reports whether lookups and writes reach the store
func (c *ResultCache) Enabled() bool { return c.enabled }

// Prefix returns the key namespace
func (c *ResultCache) Prefix() string { return c.prefix }

// Key derives the entry key of req in this cache's namespace
func (c *ResultCache) Key(req domain.AnalysisRequest) string {
	return BuildKey(req, c.prefix)
}

// Get returns the live entry stored under key. It returns ErrCacheMiss when
// the entry is absent, expired or unreadable, and a *CacheError when the
// store fails.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	if !c.enabled {
		return nil, ErrCacheMiss
	}

	data, err := c.store.GetObject(ctx, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		c.metrics.RecordCacheLookup(ctx, false, nil)
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.metrics.RecordCacheLookup(ctx, false, err)
		return nil, &apierrors.CacheError{Op: "get", Key: key, Err: err}
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WarnContext(ctx, "discarding unreadable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()))
		c.metrics.RecordCacheLookup(ctx, false, nil)
		return nil, ErrCacheMiss
	}

	if entry.Expired(c.now()) {
		c.logger.DebugContext(ctx, "cache entry expired",
			slog.String("key", key),
			slog.Time("created_at", entry.CreatedAt))
		c.metrics.RecordCacheLookup(ctx, false, nil)
		return nil, ErrCacheMiss
	}

	c.metrics.RecordCacheLookup(ctx, true, nil)
	return &entry, nil
}

// Put stores entry under entry.Key, stamping created_at and ttl. An existing
// entry is replaced.
func (c *ResultCache) Put(ctx context.Context, entry *domain.CacheEntry) error {
	if !c.enabled {
		return nil
	}
	if entry == nil || entry.Key == "" {
		return &apierrors.CacheError{Op: "put", Err: errors.New("entry has no key")}
	}

	entry.CreatedAt = c.now().UTC()
	entry.TTLHours = c.ttl.Hours()

	data, err := json.Marshal(entry)
	if err != nil {
		return &apierrors.CacheError{Op: "encode", Key: entry.Key, Err: err}
	}
	if err := c.store.PutObject(ctx, entry.Key, data); err != nil {
		c.metrics.RecordCacheWriteError(ctx)
		return &apierrors.CacheError{Op: "put", Key: entry.Key, Err: err}
	}

	c.logger.DebugContext(ctx, "cache entry stored",
		slog.String("key", entry.Key),
		slog.Int("size", len(data)))
	return nil
}

// ClearAll deletes every entry in the namespace and returns how many were
// removed, including on partial failure.
func (c *ResultCache) ClearAll(ctx context.Context) (int, error) {
	infos, err := c.store.ListKeys(ctx, c.prefix)
	if err != nil {
		return 0, &apierrors.CacheError{Op: "list", Err: err}
	}

	deleted := 0
	for _, info := range infos {
		if !c.owns(info.Key) {
			continue
		}
		if err := c.store.DeleteObject(ctx, info.Key); err != nil {
			return deleted, &apierrors.CacheError{Op: "delete", Key: info.Key, Err: err}
		}
		deleted++
	}

	c.logger.InfoContext(ctx, "cache cleared", slog.Int("deleted", deleted))
	return deleted, nil
}

// Stats reports the entries in the namespace. Expired entries are counted
// in both EntryCount and ExpiredCount.
func (c *ResultCache) Stats(ctx context.Context) (domain.CacheStats, error) {
	stats := domain.CacheStats{Enabled: c.enabled, Backend: c.backend}

	infos, err := c.store.ListKeys(ctx, c.prefix)
	if err != nil {
		return stats, &apierrors.CacheError{Op: "list", Err: err}
	}

	now := c.now()
	for _, info := range infos {
		if !c.owns(info.Key) {
			continue
		}
		stats.EntryCount++
		stats.TotalSize += info.Size

		expired, err := c.isExpired(ctx, info.Key, now)
		if err != nil {
			return stats, err
		}
		if expired {
			stats.ExpiredCount++
		}
	}
	stats.TotalSizeMB = float64(stats.TotalSize) / (1024 * 1024)
	return stats, nil
}

// SweepExpired deletes expired and unreadable entries and returns how many
// were removed.
func (c *ResultCache) SweepExpired(ctx context.Context) (int, error) {
	infos, err := c.store.ListKeys(ctx, c.prefix)
	if err != nil {
		return 0, &apierrors.CacheError{Op: "list", Err: err}
	}

	now := c.now()
	swept := 0
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		if !c.owns(info.Key) {
			continue
		}
		expired, err := c.isExpired(ctx, info.Key, now)
		if err != nil {
			return swept, err
		}
		if !expired {
			continue
		}
		if err := c.store.DeleteObject(ctx, info.Key); err != nil {
			return swept, &apierrors.CacheError{Op: "delete", Key: info.Key, Err: err}
		}
		swept++
	}

	if swept > 0 && c.metrics != nil {
		c.metrics.CacheSwept.Add(ctx, int64(swept))
	}
	c.logger.InfoContext(ctx, "expired cache entries swept",
		slog.Int("scanned", len(infos)),
		slog.Int("swept", swept))
	return swept, nil
}

// Ping checks the backing store
func (c *ResultCache) Ping(ctx context.Context) error {
	return blobstore.Ping(ctx, c.store)
}

func (c *ResultCache) owns(key string) bool {
	return strings.HasPrefix(key, c.prefix) && strings.HasSuffix(key, KeySuffix)
}

// isExpired treats a vanished object as not expired and unreadable JSON as expired
func (c *ResultCache) isExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	data, err := c.store.GetObject(ctx, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &apierrors.CacheError{Op: "get", Key: key, Err: err}
	}

	var header struct {
		CreatedAt time.Time `json:"created_at"`
		TTLHours  float64   `json:"ttl_hours"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return true, nil
	}
	entry := domain.CacheEntry{CreatedAt: header.CreatedAt, TTLHours: header.TTLHours}
	return entry.Expired(now), nil
}
