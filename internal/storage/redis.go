package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/shohag/smsrelay/internal/models"
)

// RedisStorage keeps each namespace under "<prefix>:<namespace>" with no expiry.
type RedisStorage struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{rdb: rdb, prefix: prefix}
}

// Migrate has no schema to create; it only checks that the server answers.
func (s *RedisStorage) Migrate(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStorage) Close() error {
	return s.rdb.Close()
}

func (s *RedisStorage) GetQuota(ctx context.Context) (*models.QuotaState, error) {
	var q models.QuotaState
	ok, err := s.get(ctx, QuotaNamespace, &q)
	if err != nil || !ok {
		return nil, err
	}
	return &q, nil
}

func (s *RedisStorage) PutQuota(ctx context.Context, q *models.QuotaState) error {
	return s.put(ctx, QuotaNamespace, q)
}

func (s *RedisStorage) GetCredentials(ctx context.Context) (*models.Credentials, error) {
	var c models.Credentials
	ok, err := s.get(ctx, CredentialsNamespace, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (s *RedisStorage) PutCredentials(ctx context.Context, c *models.Credentials) error {
	return s.put(ctx, CredentialsNamespace, c)
}

func (s *RedisStorage) key(namespace string) string {
	return s.prefix + ":" + namespace
}

func (s *RedisStorage) get(ctx context.Context, namespace string, dst any) (bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(namespace)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, decodeRecord(namespace, raw, dst)
}

func (s *RedisStorage) put(ctx context.Context, namespace string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(namespace), raw, 0).Err()
}
