package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohag/smsrelay/internal/models"
)

func newTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(rdb, "smsrelay")
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s, mr
}

func TestRedis_QuotaStoredUnderPrefixedKey(t *testing.T) {
	t.Parallel()

	s, mr := newTestRedis(t)
	ctx := context.Background()

	q, err := s.GetQuota(ctx)
	require.NoError(t, err)
	assert.Nil(t, q)

	require.NoError(t, s.PutQuota(ctx, &models.QuotaState{Count: 7, ResetDate: "2026-10-15"}))

	key := "smsrelay:" + QuotaNamespace
	require.True(t, mr.Exists(key))
	assert.Zero(t, mr.TTL(key), "quota record must not expire")

	q, err = s.GetQuota(ctx)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 7, q.Count)
}

func TestRedis_Credentials(t *testing.T) {
	t.Parallel()

	s, _ := newTestRedis(t)
	ctx := context.Background()

	creds := &models.Credentials{ServerURL: "http://controller", APIKey: "sg_abc", DeviceID: "dev-1", DeviceToken: "push-1"}
	require.NoError(t, s.PutCredentials(ctx, creds))

	got, err := s.GetCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestRedis_CorruptRecord(t *testing.T) {
	t.Parallel()

	s, mr := newTestRedis(t)
	require.NoError(t, mr.Set("smsrelay:"+CredentialsNamespace, "]["))

	c, err := s.GetCredentials(context.Background())
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRedis_ContextCanceled(t *testing.T) {
	t.Parallel()

	s, _ := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.PutQuota(ctx, &models.QuotaState{Count: 1, ResetDate: "2026-10-15"})
	assert.Error(t, err)
}
