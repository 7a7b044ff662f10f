package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fyrsmithlabs/battled/internal/config"
)

// Redis key layout, relative to the configured prefix:
//
//	<prefix>columns        JSON array of column names
//	<prefix>entity:<name>  JSON array of float64 values
const (
	columnsKey   = "columns"
	entityPrefix = "entity:"
)

const scanBatch = 500

// ErrNoColumns is returned when the columns key is absent from Redis.
var ErrNoColumns = errors.New("attribute columns not found in redis")

// RedisClient is the subset of go-redis commands used to load and seed the
// attribute table. *redis.Client satisfies it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ RedisClient = (*redis.Client)(nil)

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password.Value(),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// LoadRedis reads the whole attribute table once and returns it as a
// MemoryStore. The caller owns client.
func LoadRedis(ctx context.Context, client RedisClient, prefix string) (*MemoryStore, error) {
	raw, err := client.Get(ctx, prefix+columnsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: key %q", ErrNoColumns, prefix+columnsKey)
	}
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s.Columns); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}

	keys, err := scanKeys(ctx, client, prefix+entityPrefix+"*")
	if err != nil {
		return nil, err
	}

	namePrefix := prefix + entityPrefix
	for batch := range slices.Chunk(keys, scanBatch) {
		vals, err := client.MGet(ctx, batch...).Result()
		if err != nil {
			return nil, fmt.Errorf("mget entities: %w", err)
		}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				// deleted between SCAN and MGET
				continue
			}
			name := strings.TrimPrefix(batch[i], namePrefix)
			var values []float64
			if err := json.Unmarshal([]byte(str), &values); err != nil {
				return nil, fmt.Errorf("decode entity %q: %w", name, err)
			}
			s.Rows = append(s.Rows, Row{Name: name, Values: values})
		}
	}

	store, err := NewMemoryStore(&s)
	if err != nil {
		return nil, fmt.Errorf("load stats from redis: %w", err)
	}
	return store, nil
}

// SeedRedis writes store into Redis under prefix and removes entity keys
// that are no longer part of the table. It returns the number of entities
// written and removed.
func SeedRedis(ctx context.Context, client RedisClient, prefix string, store *MemoryStore) (written, removed int, err error) {
	existing, err := scanKeys(ctx, client, prefix+entityPrefix+"*")
	if err != nil {
		return 0, 0, err
	}

	snap := store.Snapshot()
	keep := make(map[string]bool, len(snap.Rows))

	for _, row := range snap.Rows {
		data, err := json.Marshal(row.Values)
		if err != nil {
			return written, 0, fmt.Errorf("encode entity %q: %w", row.Name, err)
		}
		key := prefix + entityPrefix + row.Name
		if err := client.Set(ctx, key, data, 0).Err(); err != nil {
			return written, 0, fmt.Errorf("set %s: %w", key, err)
		}
		keep[key] = true
		written++
	}

	var stale []string
	for _, key := range existing {
		if !keep[key] {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		if err := client.Del(ctx, stale...).Err(); err != nil {
			return written, 0, fmt.Errorf("delete stale entities: %w", err)
		}
	}

	// Columns are written last.
	cols, err := json.Marshal(snap.Columns)
	if err != nil {
		return written, len(stale), fmt.Errorf("encode columns: %w", err)
	}
	if err := client.Set(ctx, prefix+columnsKey, cols, 0).Err(); err != nil {
		return written, len(stale), fmt.Errorf("set columns: %w", err)
	}

	return written, len(stale), nil
}

// scanKeys returns every key matching pattern, sorted and deduplicated.
// SCAN may return a key more than once.
func scanKeys(ctx context.Context, client RedisClient, pattern string) ([]string, error) {
	seen := make(map[string]bool)
	var keys []string
	var cursor uint64
	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		for _, k := range batch {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	slices.Sort(keys)
	return keys, nil
}
