package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"wildsats-api/internal/model"
)

// Each player lives under one hash tag so every script touches a single cluster slot:
//
//	<prefix>:player:{<identity>}               hash: displayName, createdAt, lastLogin (unix micros)
//	<prefix>:player:{<identity>}:characters    list, insertion order
//	<prefix>:player:{<identity>}:characterset  set, uniqueness
//	<prefix>:player:{<identity>}:inventory     list
//	<prefix>:players                           set of identities, for stats
const scriptMissing = -1

var upsertLoginScript = redis.NewScript(`
	local created = 0
	if redis.call("EXISTS", KEYS[1]) == 0 then
		redis.call("HSET", KEYS[1], "createdAt", ARGV[2], "lastLogin", ARGV[2])
		redis.call("RPUSH", KEYS[2], ARGV[3])
		redis.call("SADD", KEYS[3], ARGV[3])
		created = 1
	end
	redis.call("HSET", KEYS[1], "displayName", ARGV[1])
	if tonumber(ARGV[2]) > tonumber(redis.call("HGET", KEYS[1], "lastLogin")) then
		redis.call("HSET", KEYS[1], "lastLogin", ARGV[2])
	end
	return created
`)

var addCharacterScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return -1
	end
	if redis.call("SADD", KEYS[3], ARGV[1]) == 1 then
		redis.call("RPUSH", KEYS[2], ARGV[1])
		return 1
	end
	return 0
`)

var appendInventoryScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return -1
	end
	return redis.call("RPUSH", KEYS[2], ARGV[1])
`)

// RedisPlayerRepository stores players in Redis, mutating each record with a Lua script.
type RedisPlayerRepository struct {
	client    redis.UniversalClient
	keyPrefix string
	ownClient bool
	opts      options
}

// RedisConfig holds connection settings for DialRedisPlayerRepository.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// DialRedisPlayerRepository connects to Redis and verifies the connection.
func DialRedisPlayerRepository(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisPlayerRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("STORAGE_FAILURE").In("repository").With("addr", cfg.Addr).Wrapf(err, "failed to ping Redis")
	}

	r := NewRedisPlayerRepository(client, cfg.KeyPrefix, opts...)
	r.ownClient = true
	r.opts.logger.InfoContext(ctx, "redis player store ready", "addr", cfg.Addr, "db", cfg.DB, "prefix", r.keyPrefix)
	return r, nil
}

// NewRedisPlayerRepository wraps an existing client. Close leaves a borrowed client open.
func NewRedisPlayerRepository(client redis.UniversalClient, keyPrefix string, opts ...Option) *RedisPlayerRepository {
	if keyPrefix == "" {
		keyPrefix = "wildsats"
	}
	return &RedisPlayerRepository{
		client:    client,
		keyPrefix: keyPrefix,
		opts:      buildOptions("redis", opts),
	}
}

func (r *RedisPlayerRepository) playerKey(identity string) string {
	return r.keyPrefix + ":player:{" + identity + "}"
}

func (r *RedisPlayerRepository) keys(identity string) []string {
	base := r.playerKey(identity)
	return []string{base, base + ":characters", base + ":characterset", base + ":inventory"}
}

func (r *RedisPlayerRepository) playersKey() string {
	return r.keyPrefix + ":players"
}

// UpsertLogin creates or refreshes a record.
func (r *RedisPlayerRepository) UpsertLogin(ctx context.Context, identity, displayName string) (*model.PlayerRecord, error) {
	now := r.opts.clock.Now().UnixMicro()
	keys := r.keys(identity)

	created, err := upsertLoginScript.Run(ctx, r.client, keys[:3], displayName, now, r.opts.defaultCharacter).Int()
	if err != nil {
		return nil, storageError("upsert_login", identity, err)
	}
	if created == 1 {
		if err := r.client.SAdd(ctx, r.playersKey(), identity).Err(); err != nil {
			r.opts.logger.WarnContext(ctx, "player index update failed", "identity", identity, "error", err)
		}
	}
	return r.load(ctx, "upsert_login", identity)
}

// AddCharacterUnique adds name unless the character set already holds it.
func (r *RedisPlayerRepository) AddCharacterUnique(ctx context.Context, identity, name string) (*model.PlayerRecord, bool, error) {
	res, err := addCharacterScript.Run(ctx, r.client, r.keys(identity)[:3], name).Int()
	if err != nil {
		return nil, false, storageError("add_character", identity, err)
	}
	if res == scriptMissing {
		return nil, false, notFound("add_character", identity)
	}

	p, err := r.load(ctx, "add_character", identity)
	if err != nil {
		return nil, false, err
	}
	return p, res == 1, nil
}

// AppendInventoryItem pushes itemID onto the inventory list.
func (r *RedisPlayerRepository) AppendInventoryItem(ctx context.Context, identity, itemID string) (*model.PlayerRecord, error) {
	keys := r.keys(identity)
	res, err := appendInventoryScript.Run(ctx, r.client, []string{keys[0], keys[3]}, itemID).Int()
	if err != nil {
		return nil, storageError("append_inventory", identity, err)
	}
	if res == scriptMissing {
		return nil, notFound("append_inventory", identity)
	}
	return r.load(ctx, "append_inventory", identity)
}

// GetCharacters returns the owned characters in insertion order.
func (r *RedisPlayerRepository) GetCharacters(ctx context.Context, identity string) ([]string, error) {
	p, err := r.load(ctx, "get_characters", identity)
	if err != nil {
		return nil, err
	}
	return p.Characters, nil
}

// GetPlayer returns the full record.
func (r *RedisPlayerRepository) GetPlayer(ctx context.Context, identity string) (*model.PlayerRecord, error) {
	return r.load(ctx, "get_player", identity)
}

// load reads the hash and both lists in one MULTI so the snapshot is consistent.
func (r *RedisPlayerRepository) load(ctx context.Context, op, identity string) (*model.PlayerRecord, error) {
	keys := r.keys(identity)

	var (
		fields     *redis.MapStringStringCmd
		characters *redis.StringSliceCmd
		inventory  *redis.StringSliceCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, keys[0])
		characters = pipe.LRange(ctx, keys[1], 0, -1)
		inventory = pipe.LRange(ctx, keys[3], 0, -1)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, storageError(op, identity, err)
	}

	h := fields.Val()
	if len(h) == 0 {
		return nil, notFound(op, identity)
	}

	p := &model.PlayerRecord{
		Identity:    identity,
		DisplayName: h["displayName"],
		Characters:  append([]string{}, characters.Val()...),
		Inventory:   append([]string{}, inventory.Val()...),
		CreatedAt:   parseMicros(h["createdAt"]),
		LastLogin:   parseMicros(h["lastLogin"]),
	}
	return p, nil
}

func parseMicros(s string) time.Time {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

// GetStats returns the number of known players.
func (r *RedisPlayerRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	n, err := r.client.SCard(ctx, r.playersKey()).Result()
	if err != nil {
		return nil, storageError("stats", "", err)
	}
	return map[string]interface{}{
		"backend":       "redis",
		"total_players": n,
		"key_prefix":    r.keyPrefix,
	}, nil
}

// Ping checks the connection.
func (r *RedisPlayerRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client when the repository dialed it.
func (r *RedisPlayerRepository) Close() error {
	if !r.ownClient {
		return nil
	}
	return r.client.Close()
}

var _ PlayerRepository = (*RedisPlayerRepository)(nil)
