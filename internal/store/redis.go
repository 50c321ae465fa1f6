// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hintone/internal/models"
)

// roomTTL bounds how long an abandoned room survives. Party rooms are
// ephemeral; a day is generous.
const roomTTL = 24 * time.Hour

// RedisStore persists rooms as JSON values in Redis, for deployments that
// want rooms to survive a server restart. Selected via ROOM_STORE=redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, prefix: "hintone:room:"}, nil
}

func (s *RedisStore) key(roomID string) string {
	return s.prefix + roomID
}

func (s *RedisStore) Get(ctx context.Context, roomID string) (models.Room, bool, error) {
	data, err := s.client.Get(ctx, s.key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Room{}, false, nil
	}
	if err != nil {
		return models.Room{}, false, fmt.Errorf("redis get %s: %w", roomID, err)
	}
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return models.Room{}, false, fmt.Errorf("unmarshal room %s: %w", roomID, err)
	}
	return room, true, nil
}

func (s *RedisStore) Save(ctx context.Context, room models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", room.ID, err)
	}
	if err := s.client.Set(ctx, s.key(room.ID), data, roomTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", room.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, s.key(roomID)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", roomID, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, roomID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(roomID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", roomID, err)
	}
	return n > 0, nil
}
