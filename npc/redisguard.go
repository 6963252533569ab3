package npc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so a
// session that outlived its TTL can't release someone else's run.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisGuard is a Guard shared by every plugin process using the same key.
// The driver extends the key at every phase, so the TTL must outlast the
// longest single phase.
type RedisGuard struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisGuard creates an instance of a RedisGuard.
func NewRedisGuard(client *redis.Client, key string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (g *RedisGuard) TryStart(ctx context.Context) (Session, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", g.key, err)
	}
	if !ok {
		return nil, ErrRunning
	}
	return &redisSession{guard: g, token: token}, nil
}

func (g *RedisGuard) Running(ctx context.Context) (bool, error) {
	n, err := g.client.Exists(ctx, g.key).Result()
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", g.key, err)
	}
	return n > 0, nil
}

type redisSession struct {
	guard *RedisGuard
	token string
}

// Extend resets the key's TTL while it still holds this session's token.
func (s *redisSession) Extend(ctx context.Context) error {
	n, err := extendScript.Run(ctx, s.guard.client, []string{s.guard.key}, s.token, s.guard.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extending %s: %w", s.guard.key, err)
	}
	if n == 0 {
		return fmt.Errorf("extending %s: %w", s.guard.key, ErrLost)
	}
	return nil
}

func (s *redisSession) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, s.guard.client, []string{s.guard.key}, s.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("releasing %s: %w", s.guard.key, err)
	}
	return nil
}
