package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/redis/go-redis/v9"
)

const reservedMarker = "__reserved__"

// commitScript swaps a reservation for the room payload, but only if the key
// still holds the reservation marker.
//
// Returns 1 on success, 0 when nothing is reserved and 2 when a room is already there.
var commitScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	return 0
end
if current ~= ARGV[1] then
	return 2
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// redisRoomRegistry shares rooms between instances. Key TTLs do the sweeping.
type redisRoomRegistry struct {
	client    *redis.Client
	keyPrefix string
	opts      options
}

func NewRedisRoomRegistry(client *redis.Client, keyPrefix string, opts ...Option) domain.RoomRegistry {
	return &redisRoomRegistry{
		client:    client,
		keyPrefix: keyPrefix,
		opts:      newOptions(opts),
	}
}

func (r *redisRoomRegistry) key(code domain.RoomCode) string {
	return r.keyPrefix + "room:" + string(code)
}

func (r *redisRoomRegistry) Reserve(ctx context.Context, code domain.RoomCode) error {
	if code == "" {
		return domain.ErrInvalidInput
	}

	ok, err := r.client.SetNX(ctx, r.key(code), reservedMarker, domain.RoomTTL).Result()
	if err != nil {
		return fmt.Errorf("reserve room %s: %w", code, err)
	}
	if !ok {
		return domain.ErrRoomAlreadyExists
	}
	return nil
}

func (r *redisRoomRegistry) Release(ctx context.Context, code domain.RoomCode) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(code)}, reservedMarker).Err(); err != nil {
		return fmt.Errorf("release room %s: %w", code, err)
	}
	return nil
}

func (r *redisRoomRegistry) Commit(ctx context.Context, room *domain.Room) error {
	if room == nil || room.Code == "" {
		return domain.ErrInvalidInput
	}

	payload, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}

	ttl := room.ExpiresAt.Sub(r.opts.now())
	if ttl <= 0 {
		return domain.ErrRoomNotFound
	}

	res, err := commitScript.Run(ctx, r.client, []string{r.key(room.Code)},
		reservedMarker, payload, ttlMillis(ttl)).Int()
	if err != nil {
		return fmt.Errorf("commit room %s: %w", room.Code, err)
	}

	switch res {
	case 1:
		return nil
	case 2:
		return domain.ErrRoomAlreadyExists
	default:
		return domain.ErrRoomNotFound
	}
}

func (r *redisRoomRegistry) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	if code == "" {
		return nil, domain.ErrInvalidInput
	}

	data, err := r.client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}

	if string(data) == reservedMarker {
		return nil, domain.ErrRoomNotFound
	}

	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}

	// Clock skew between instances can outlive the key TTL by a little.
	if room.Expired(r.opts.now()) {
		_ = r.client.Del(ctx, r.key(code)).Err()
		r.evicted(code)
		return nil, domain.ErrRoomNotFound
	}

	return &room, nil
}

func (r *redisRoomRegistry) Delete(ctx context.Context, code domain.RoomCode) error {
	if err := r.client.Del(ctx, r.key(code)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

// Sweep walks the namespace for rooms whose payload is past expiry. Redis
// normally drops them first through the key TTL.
func (r *redisRoomRegistry) Sweep(ctx context.Context) (int, error) {
	now := r.opts.now()
	evicted := 0

	iter := r.client.Scan(ctx, 0, r.keyPrefix+"room:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil || string(data) == reservedMarker {
			continue
		}

		var room domain.Room
		if err := json.Unmarshal(data, &room); err != nil {
			continue
		}

		if room.Expired(now) {
			if err := r.client.Del(ctx, key).Err(); err != nil {
				return evicted, fmt.Errorf("delete %s: %w", key, err)
			}
			r.evicted(room.Code)
			evicted++
		}
	}

	return evicted, iter.Err()
}

// ttlMillis rounds a positive TTL for PX, which rejects 0.
func ttlMillis(ttl time.Duration) int64 {
	return max(ttl.Milliseconds(), 1)
}

func (r *redisRoomRegistry) evicted(code domain.RoomCode) {
	if r.opts.onEvict != nil {
		r.opts.onEvict(code)
	}
}

// NewRedisClient dials Redis and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return client, nil
}
