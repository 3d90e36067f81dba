package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"lms-assessment/internal/cache"
	"lms-assessment/internal/domain"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheAdapter_Get(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheAdapter(client)
	ctx := context.Background()
	key := cache.CatalogKey("quiz", 5)
	redisErr := errors.New("connection refused")

	tests := []struct {
		name    string
		setup   func()
		want    string
		wantErr error
	}{
		{name: "hit", setup: func() { mock.ExpectGet(key).SetVal(`{"id":5}`) }, want: `{"id":5}`},
		{name: "miss", setup: func() { mock.ExpectGet(key).SetErr(redis.Nil) }, wantErr: domain.ErrCacheMiss},
		{name: "redis error", setup: func() { mock.ExpectGet(key).SetErr(redisErr) }, wantErr: redisErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			got, err := c.Get(ctx, key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisCacheAdapter_SetDeletePing(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheAdapter(client)
	ctx := context.Background()
	key := cache.CatalogKey("course", 10)

	mock.ExpectSet(key, "v", 5*time.Minute).SetVal("OK")
	assert.NoError(t, c.Set(ctx, key, "v", 5*time.Minute))

	mock.ExpectDel(key).SetVal(0)
	assert.NoError(t, c.Delete(ctx, key), "missing keys are not an error")

	redisErr := errors.New("down")
	mock.ExpectPing().SetErr(redisErr)
	assert.ErrorIs(t, c.Ping(ctx), redisErr)

	assert.NoError(t, mock.ExpectationsWereMet())
}
