package grantaccess

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/models"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCachedCatalog_ReadThrough(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	source := new(MockCatalog)
	source.On("FindProductBySlug", mock.Anything, "resistance-mapping-guide").Return(primaryProduct, nil).Once()

	catalog := NewCachedCatalog(source, rdb, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	first, err := catalog.FindProductBySlug(ctx, "resistance-mapping-guide")
	require.NoError(t, err)
	second, err := catalog.FindProductBySlug(ctx, "resistance-mapping-guide")
	require.NoError(t, err)

	assert.Equal(t, primaryProduct, first)
	assert.Equal(t, primaryProduct, second)
	source.AssertNumberOfCalls(t, "FindProductBySlug", 1)

	assert.True(t, mr.Exists("product:slug:resistance-mapping-guide"))
	assert.Equal(t, time.Minute, mr.TTL("product:slug:resistance-mapping-guide"))
}

func TestCachedCatalog_MissNotCached(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	source := new(MockCatalog)
	source.On("FindProductBySlug", mock.Anything, "golden-thread-technique").
		Return(nil, errors.NewProductNotFoundError("golden-thread-technique"))

	catalog := NewCachedCatalog(source, rdb, time.Minute, logger.NewTestLogger(t))

	_, err := catalog.FindProductBySlug(context.Background(), "golden-thread-technique")

	assert.True(t, errors.HasCode(err, errors.ErrCodeProductNotFound))
	assert.False(t, mr.Exists("product:slug:golden-thread-technique"))
}

func TestCachedCatalog_CorruptEntryRefetched(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	require.NoError(t, mr.Set("product:slug:resistance-mapping-guide", "{not json"))

	source := new(MockCatalog)
	source.On("FindProductBySlug", mock.Anything, "resistance-mapping-guide").Return(primaryProduct, nil)
	catalog := NewCachedCatalog(source, rdb, time.Minute, logger.NewTestLogger(t))

	p, err := catalog.FindProductBySlug(context.Background(), "resistance-mapping-guide")
	require.NoError(t, err)
	assert.Equal(t, "prod-primary", p.ID)

	raw, err := mr.Get("product:slug:resistance-mapping-guide")
	require.NoError(t, err)
	var cached models.Product
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, "prod-primary", cached.ID)
}

func TestCachedCatalog_RedisDownFallsThrough(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	redisMock.ExpectGet("product:slug:resistance-mapping-guide").SetErr(fmt.Errorf("connection refused"))
	data, _ := json.Marshal(primaryProduct)
	redisMock.ExpectSet("product:slug:resistance-mapping-guide", data, time.Minute).SetErr(fmt.Errorf("connection refused"))

	source := new(MockCatalog)
	source.On("FindProductBySlug", mock.Anything, "resistance-mapping-guide").Return(primaryProduct, nil)
	catalog := NewCachedCatalog(source, rdb, time.Minute, logger.NewTestLogger(t))

	p, err := catalog.FindProductBySlug(context.Background(), "resistance-mapping-guide")
	require.NoError(t, err)
	assert.Equal(t, "prod-primary", p.ID)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCachedCatalog_Invalidate(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	require.NoError(t, mr.Set("product:slug:a", "{}"))
	require.NoError(t, mr.Set("product:slug:b", "{}"))

	catalog := NewCachedCatalog(new(MockCatalog), rdb, time.Minute, logger.NewNoOpLogger())
	require.NoError(t, catalog.Invalidate(context.Background(), "a", "b"))

	assert.False(t, mr.Exists("product:slug:a"))
	assert.False(t, mr.Exists("product:slug:b"))
	assert.NoError(t, catalog.Invalidate(context.Background()))
}
