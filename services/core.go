package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"huntzen-care/monitoring"
	"huntzen-care/utils"
)

// Cache is the subset of utils.RedisClient the services rely on.
type Cache interface {
	GetFromCache(ctx context.Context, key string) (string, error)
	SetToCache(ctx context.Context, key string, value string, expiration time.Duration) error
	DeleteFromCache(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// SearchIndex is the subset of utils.ElasticsearchClient used for the
// practitioner directory.
type SearchIndex interface {
	EnsureIndex(ctx context.Context, index string, definition map[string]interface{}) error
	IndexDocument(ctx context.Context, index string, id string, document interface{}) error
	Search(ctx context.Context, index string, query map[string]interface{}) ([]map[string]interface{}, error)
	DeleteDocument(ctx context.Context, index string, id string) error
}

const (
	cachePrefixPractitioners = "practitioners:"
	cachePrefixStats         = "stats:"
	cachePrefixRevoked       = "revoked:"
)

// core holds the collaborators shared by every service. Cache, events and
// search are optional.
type core struct {
	db       *gorm.DB
	log      *slog.Logger
	cache    Cache
	events   EventPublisher
	indexer  *PractitionerIndexer
	cacheTTL time.Duration
	now      func() time.Time
}

func (c *core) clock() time.Time {
	return c.now().UTC()
}

// sideEffectFailed logs and counts a swallowed best-effort failure.
func (c *core) sideEffectFailed(kind string, err error, attrs ...any) {
	monitoring.SideEffectFailures.WithLabelValues(kind).Inc()
	c.log.Warn("side effect failed", append([]any{"kind", kind, "error", err}, attrs...)...)
}

// cached fills dest from the cache under key, or calls load to fill it and
// stores the result.
func (c *core) cached(ctx context.Context, key string, dest interface{}, load func() error) error {
	if c.cache != nil {
		raw, err := c.cache.GetFromCache(ctx, key)
		switch {
		case err == nil:
			if json.Unmarshal([]byte(raw), dest) == nil {
				return nil
			}
		case !errors.Is(err, utils.ErrCacheMiss):
			c.sideEffectFailed("cache_read", err, "key", key)
		}
	}

	if err := load(); err != nil {
		return err
	}

	if c.cache != nil {
		data, err := json.Marshal(dest)
		if err == nil {
			err = c.cache.SetToCache(ctx, key, string(data), c.cacheTTL)
		}
		if err != nil {
			c.sideEffectFailed("cache_write", err, "key", key)
		}
	}
	return nil
}

func (c *core) invalidate(ctx context.Context, prefixes ...string) {
	if c.cache == nil {
		return
	}
	for _, prefix := range prefixes {
		if err := c.cache.DeleteByPrefix(ctx, prefix); err != nil {
			c.sideEffectFailed("cache_invalidate", err, "prefix", prefix)
		}
	}
}

// publish sends the event in the background. Failures never reach the caller.
func (c *core) publish(ev Event) {
	if c.events == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = c.clock()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.events.Publish(ctx, ev); err != nil {
			c.sideEffectFailed("event", err, "event", ev.Type)
		}
	}()
}

// practitionerChanged refreshes every derived copy of a practitioner: the
// list cache right away, the search index through the event bus or, without
// one, directly.
func (c *core) practitionerChanged(ctx context.Context, eventType string, practitionerID, userID uint) {
	c.invalidate(ctx, cachePrefixPractitioners)
	if c.events != nil {
		c.publish(Event{Type: eventType, EntityID: practitionerID, UserID: userID})
		return
	}
	if c.indexer != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.indexer.Sync(ctx, practitionerID); err != nil {
				c.sideEffectFailed("search_index", err, "practitioner_id", practitionerID)
			}
		}()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike quotes LIKE wildcards for clauses declared with ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// likePattern is matched against LOWER(column) with ESCAPE '\'.
func likePattern(search string) string {
	return "%" + escapeLike(strings.ToLower(strings.TrimSpace(search))) + "%"
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address for activity logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
