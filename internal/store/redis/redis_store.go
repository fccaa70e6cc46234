// internal/store/redis/redis_store.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/avivl/editwarning/internal/lockservice"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

// Error definitions
var (
	ErrConfigOptionMissing = errors.New("Redis requires a config option")
)

// StoreName is the registered name of the Redis store
const StoreName = "redis"

const (
	versionField  = "v"
	sectionPrefix = "s:"
)

var tracer = otel.Tracer("github.com/avivl/editwarning/internal/store/redis")

// commitScript applies one document's mutations when its version still matches.
//
//	KEYS[1] document hash, KEYS[2] set of documents holding locks,
//	KEYS[3..] user indexes, the first ARGV[3] of them for users still holding a lock
//	ARGV[1] expected version, ARGV[2] document id, ARGV[3] holder count,
//	ARGV[4] delete count, then the section fields to delete, then field/value pairs to write
var commitScript = redis.NewScript(`
local key, docs = KEYS[1], KEYS[2]
local cur = redis.call('HGET', key, 'v') or '0'
if cur ~= ARGV[1] then
  return 0
end
local i = 5
for _ = 1, tonumber(ARGV[4]) do
  redis.call('HDEL', key, ARGV[i])
  i = i + 1
end
while i < #ARGV do
  redis.call('HSET', key, ARGV[i], ARGV[i + 1])
  i = i + 2
end
redis.call('HINCRBY', key, 'v', 1)
if redis.call('HLEN', key) <= 1 then
  redis.call('DEL', key)
  redis.call('SREM', docs, ARGV[2])
else
  redis.call('SADD', docs, ARGV[2])
end
local holders = tonumber(ARGV[3])
for j = 3, #KEYS do
  if j - 2 <= holders then
    redis.call('SADD', KEYS[j], ARGV[2])
  else
    redis.call('SREM', KEYS[j], ARGV[2])
  end
end
return 1
`)

// redisClient defines the Redis operations the store uses
type redisClient interface {
	redis.Scripter
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Factory function for creating Redis clients
// Can be replaced during tests for mocking
var newRedisClientFn = func(addr string, password string, db int) redisClient {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Register the Redis store with the lockservice package
func init() {
	lockservice.Register(StoreName, newStore)
}

// newStore creates a new Redis store instance from configuration
func newStore(ctx context.Context, options lockservice.Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*RedisConfig)
	if !ok && options != nil {
		return nil, &store.InvalidConfigurationError{Store: StoreName, Config: options}
	}
	return New(ctx, cfg, logger)
}

// Store keeps each document's locks in one hash, one JSON field per section
// plus a version field checked by the commit script.
type Store struct {
	client redisClient
	prefix string
	l      *observability.SLogger
	config *RedisConfig
}

// GetConfig returns the current store configuration
func (s *Store) GetConfig() store.StoreConfig {
	return s.config
}

// New creates a new Redis store with the provided configuration
func New(ctx context.Context, config *RedisConfig, logger *observability.SLogger) (*Store, error) {
	if config == nil {
		return nil, ErrConfigOptionMissing
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	client := newRedisClientFn(addr, config.Password, config.DB)

	// Test connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Errorf("Error connecting to Redis: %v", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client: client,
		prefix: config.TableName,
		l:      logger,
		config: config,
	}, nil
}

// Keys share one hash tag so the commit script stays in a single cluster slot.
func (s *Store) documentKey(documentID int64) string {
	return fmt.Sprintf("{%s}:doc:%d", s.prefix, documentID)
}

func (s *Store) documentsKey() string {
	return fmt.Sprintf("{%s}:docs", s.prefix)
}

func (s *Store) userKey(userID int64) string {
	return fmt.Sprintf("{%s}:user:%d", s.prefix, userID)
}

func sectionField(section int) string {
	return sectionPrefix + strconv.Itoa(section)
}

func (s *Store) load(ctx context.Context, documentID int64) (store.LockSet, int64, error) {
	fields, err := s.client.HGetAll(ctx, s.documentKey(documentID)).Result()
	if err != nil {
		return store.LockSet{}, 0, store.Unavailable("hgetall", err)
	}

	var (
		records []store.LockRecord
		version int64
	)
	for field, raw := range fields {
		if field == versionField {
			if version, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return store.LockSet{}, 0, store.Unavailable("decode version", err)
			}
			continue
		}
		if !strings.HasPrefix(field, sectionPrefix) {
			continue
		}
		var rec store.LockRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return store.LockSet{}, 0, store.Unavailable("decode lock", err)
		}
		rec.DocumentID = documentID
		records = append(records, rec)
	}
	return store.NewLockSet(documentID, records), version, nil
}

// Load returns the lock set of a document
func (s *Store) Load(ctx context.Context, documentID int64) (store.LockSet, error) {
	set, _, err := s.load(ctx, documentID)
	return set, err
}

// Update runs fn against the document hash and applies the result with the commit script.
func (s *Store) Update(ctx context.Context, documentID int64, fn func(tx *store.Tx) error) error {
	ctx, span := tracer.Start(ctx, "Redis.Update")
	span.SetAttributes(attribute.Int64("document.id", documentID))
	defer span.End()

	err := store.Retry(ctx, s.config.MaxRetries, s.config.RetryInterval, func() error {
		set, version, err := s.load(ctx, documentID)
		if err != nil {
			return err
		}
		tx := store.NewTx(set)
		if err := fn(tx); err != nil {
			return err
		}
		if !tx.Changed() {
			return nil
		}
		return s.commit(ctx, tx, version)
	})
	if err != nil {
		observability.RecordSpanError(span, err)
	}
	return err
}

func (s *Store) commit(ctx context.Context, tx *store.Tx, version int64) error {
	documentID := tx.DocumentID()
	deletes := tx.Deletes()
	puts := tx.Puts()

	touched := make(map[int64]struct{})
	for _, section := range deletes {
		if rec, ok := lockAt(tx.Loaded(), section); ok {
			touched[rec.UserID] = struct{}{}
		}
	}
	fields := make([]interface{}, 0, len(deletes)+2*len(puts))
	for _, section := range deletes {
		fields = append(fields, sectionField(section))
	}
	for _, rec := range puts {
		if err := rec.Validate(); err != nil {
			return err
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		touched[rec.UserID] = struct{}{}
		fields = append(fields, sectionField(rec.Section), string(raw))
	}

	// The script only applies on an unchanged version, so the hash ends up
	// holding exactly tx.Locks() and index membership can be decided here.
	holding := make(map[int64]bool)
	for _, rec := range tx.Locks().Records() {
		holding[rec.UserID] = true
	}
	var held, released []int64
	for id := range touched {
		if holding[id] {
			held = append(held, id)
		} else {
			released = append(released, id)
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })

	keys := []string{s.documentKey(documentID), s.documentsKey()}
	for _, id := range held {
		keys = append(keys, s.userKey(id))
	}
	for _, id := range released {
		keys = append(keys, s.userKey(id))
	}
	args := append([]interface{}{
		strconv.FormatInt(version, 10),
		strconv.FormatInt(documentID, 10),
		len(held),
		len(deletes),
	}, fields...)

	applied, err := commitScript.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return store.Unavailable("commit script", err)
	}
	if applied == 0 {
		return store.ErrKeyModified
	}
	return nil
}

func lockAt(set store.LockSet, section int) (store.LockRecord, bool) {
	if section == store.ArticleSection {
		if set.Article == nil {
			return store.LockRecord{}, false
		}
		return *set.Article, true
	}
	return set.Section(section)
}

// Save upserts a record by (document, section)
func (s *Store) Save(ctx context.Context, rec store.LockRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.Update(ctx, rec.DocumentID, func(tx *store.Tx) error {
		tx.Put(rec)
		return nil
	})
}

// Remove deletes the lock on one section of a document
func (s *Store) Remove(ctx context.Context, documentID int64, section int) error {
	return s.Update(ctx, documentID, func(tx *store.Tx) error {
		tx.Delete(section)
		return nil
	})
}

// RemoveAll deletes every lock of a document
func (s *Store) RemoveAll(ctx context.Context, documentID int64) error {
	return s.Update(ctx, documentID, func(tx *store.Tx) error {
		for _, rec := range tx.Loaded().Records() {
			tx.Delete(rec.Section)
		}
		return nil
	})
}

// RemoveByUser walks the user's index set
func (s *Store) RemoveByUser(ctx context.Context, userID int64) error {
	ctx, span := tracer.Start(ctx, "Redis.RemoveByUser")
	span.SetAttributes(attribute.Int64("user.id", userID))
	defer span.End()

	ids, err := s.members(ctx, s.userKey(userID))
	if err != nil {
		observability.RecordSpanError(span, err)
		return err
	}
	for _, documentID := range ids {
		err := s.Update(ctx, documentID, func(tx *store.Tx) error {
			for _, rec := range tx.Loaded().HeldBy(userID) {
				tx.Delete(rec.Section)
			}
			return nil
		})
		if err != nil {
			observability.RecordSpanError(span, err)
			return err
		}
	}
	return nil
}

// RemoveExpired walks every document holding locks and drops those acquired before the cutoff
func (s *Store) RemoveExpired(ctx context.Context, before time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Redis.RemoveExpired")
	defer span.End()

	ids, err := s.members(ctx, s.documentsKey())
	if err != nil {
		observability.RecordSpanError(span, err)
		return 0, err
	}

	removed := 0
	for _, documentID := range ids {
		n := 0
		err := s.Update(ctx, documentID, func(tx *store.Tx) error {
			n = 0
			for _, rec := range tx.Loaded().Records() {
				if rec.AcquiredAt.Before(before) {
					tx.Delete(rec.Section)
					n++
				}
			}
			return nil
		})
		if err != nil {
			observability.RecordSpanError(span, err)
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func (s *Store) members(ctx context.Context, key string) ([]int64, error) {
	raw, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, store.Unavailable("smembers", err)
	}
	ids := make([]int64, 0, len(raw))
	for _, m := range raw {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			s.l.Warnf("Skipping malformed document id %q in %s", m, key)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close closes the Redis client connection
func (s *Store) Close() {
	if err := s.client.Close(); err != nil {
		s.l.Errorf("Error closing Redis client: %v", err)
	}
}
