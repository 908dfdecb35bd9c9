package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixBlob        = "vault:blob:"
	keyLedgerState       = "vault:ledger:state"
	keySchemaVersion     = "vault:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Key set for listing operations (Redis doesn't support prefix iteration natively)
	keySetBlobs = "vault:blobs:index"
)

// RedisPersistence is a persistence implementation using Redis.
// Suitable for deployments where several processes share one store.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// If set, this prefix is prepended to all keys, e.g., "myapp:" would result in
	// keys like "myapp:vault:blob:<id>". If empty, keys use the default "vault:" prefix.
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	// Initialize schema version
	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.KeyPrefix != "" {
		logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	} else {
		logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB)
	}

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) blobKey(id types.FileID) string {
	return r.prefixKey(keyPrefixBlob + id.Hex())
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	// Check if schema version exists
	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		// First time setup - set schema version
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// PutBlob stores blob under id and records the id in the index set
func (r *RedisPersistence) PutBlob(id types.FileID, blob []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()

	// Store in Redis using a transaction so the index never lags the value
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.blobKey(id), blob, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetBlobs), id.Hex())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store blob %s: %w", id.Hex(), err)
	}

	return nil
}

// GetBlob retrieves the blob stored under id
func (r *RedisPersistence) GetBlob(id types.FileID) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.blobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrNotFound, id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load blob %s: %w", id.Hex(), err)
	}

	return data, nil
}

// ListBlobIDs returns all ids from the index set, sorted ascending
func (r *RedisPersistence) ListBlobIDs() ([]types.FileID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetBlobs)

	members, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list blob ids: %w", err)
	}

	ids := make([]types.FileID, 0, len(members))
	if len(members) == 0 {
		return ids, nil
	}

	// Check every indexed key still exists
	pipe := r.client.Pipeline()
	exists := make([]*redis.IntCmd, len(members))
	for i, member := range members {
		exists[i] = pipe.Exists(ctx, r.prefixKey(keyPrefixBlob+member))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check blob keys: %w", err)
	}

	for i, member := range members {
		if exists[i].Val() == 0 {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, member)
			continue
		}

		id, err := types.FileIDFromHex(member)
		if err != nil {
			r.logger.Sugar().Warnw("Skipping malformed blob index entry", "member", member, "error", err)
			continue
		}
		ids = append(ids, id)
	}

	persistence.SortFileIDs(ids)
	return ids, nil
}

// SaveLedgerState persists the ledger state
func (r *RedisPersistence) SaveLedgerState(state *persistence.LedgerState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil LedgerState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalLedgerState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal LedgerState: %w", err)
	}

	if err := r.client.Set(context.Background(), r.prefixKey(keyLedgerState), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save LedgerState: %w", err)
	}

	return nil
}

// LoadLedgerState retrieves the ledger state
func (r *RedisPersistence) LoadLedgerState() (*persistence.LedgerState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.prefixKey(keyLedgerState)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // First run
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load LedgerState: %w", err)
	}

	state, err := persistence.UnmarshalLedgerState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal LedgerState: %w", err)
	}

	return state, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil // Already closed, idempotent
	}
	r.closed = true
	r.mu.Unlock()

	// Close Redis client
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ping Redis to check connectivity
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	// Verify schema version exists
	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
