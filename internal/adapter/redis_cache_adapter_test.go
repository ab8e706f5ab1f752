package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursequiz/internal/domain"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisCacheAdapter_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	adapter := NewRedisCacheAdapter(db)
	ctx := context.Background()

	key := "coursequiz:extract:chunks:01HMAT"

	t.Run("Success", func(t *testing.T) {
		mock.ExpectGet(key).SetVal(`["chunk one"]`)
		val, err := adapter.Get(ctx, key)
		assert.NoError(t, err)
		assert.Equal(t, `["chunk one"]`, val)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CacheMiss", func(t *testing.T) {
		mock.ExpectGet(key).SetErr(redis.Nil)
		val, err := adapter.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
		assert.Empty(t, val)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RedisError", func(t *testing.T) {
		redisErr := errors.New("some redis error")
		mock.ExpectGet(key).SetErr(redisErr)
		val, err := adapter.Get(ctx, key)
		assert.ErrorIs(t, err, redisErr)
		assert.Empty(t, val)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisCacheAdapter_SetAndDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	adapter := NewRedisCacheAdapter(db)
	ctx := context.Background()

	mock.ExpectSet("k", "v", time.Hour).SetVal("OK")
	assert.NoError(t, adapter.Set(ctx, "k", "v", time.Hour))

	mock.ExpectDel("k1", "k2").SetVal(2)
	assert.NoError(t, adapter.Delete(ctx, "k1", "k2"))

	assert.NoError(t, adapter.Delete(ctx), "deleting nothing does not reach redis")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheAdapter_Hashes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	adapter := NewRedisCacheAdapter(db)
	ctx := context.Background()

	key := "coursequiz:taskqueue:quiz:01HQUIZ"

	t.Run("HGet miss", func(t *testing.T) {
		mock.ExpectHGet(key, "01HTASK").RedisNil()
		_, err := adapter.HGet(ctx, key, "01HTASK")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("HGetAll empty is a miss", func(t *testing.T) {
		mock.ExpectHGetAll(key).SetVal(map[string]string{})
		_, err := adapter.HGetAll(ctx, key)
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("HGetAll", func(t *testing.T) {
		mock.ExpectHGetAll(key).SetVal(map[string]string{"01HTASK": "running"})
		val, err := adapter.HGetAll(ctx, key)
		assert.NoError(t, err)
		assert.Equal(t, "running", val["01HTASK"])
	})

	t.Run("HSet and Expire", func(t *testing.T) {
		mock.ExpectHSet(key, "01HTASK", "succeeded").SetVal(1)
		mock.ExpectExpire(key, time.Hour).SetVal(true)
		assert.NoError(t, adapter.HSet(ctx, key, "01HTASK", "succeeded"))
		assert.NoError(t, adapter.Expire(ctx, key, time.Hour))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheAdapter_HSetFieldsIsOrdered(t *testing.T) {
	db, mock := redismock.NewClientMock()
	adapter := NewRedisCacheAdapter(db)

	mock.ExpectHSet("k", "a", "1", "b", "2", "c", "3").SetVal(3)
	assert.NoError(t, adapter.HSetFields(context.Background(), "k", map[string]string{"c": "3", "a": "1", "b": "2"}))
	assert.NoError(t, adapter.HSetFields(context.Background(), "k", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
