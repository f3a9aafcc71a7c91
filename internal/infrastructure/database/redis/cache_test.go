package redis

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/TripMatch/internal/config"
	"github.com/turtacn/TripMatch/pkg/errors"
)

type cachedMatch struct {
	Label string `json:"label"`
	Tier  string `json:"tier"`
}

type CacheTestSuite struct {
	suite.Suite
	mr    *miniredis.Miniredis
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	client, err := NewClient(context.Background(), config.RedisConfig{Addr: s.mr.Addr()}, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = client.Close() })
	s.cache = NewRedisCache(client, nil, WithPrefix("test:"), WithDefaultTTL(time.Minute))
}

func (s *CacheTestSuite) TestSetGet() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "k", cachedMatch{Label: "3", Tier: "exact"}, 0))

	var got cachedMatch
	s.Require().NoError(s.cache.Get(ctx, "k", &got))
	s.Equal(cachedMatch{Label: "3", Tier: "exact"}, got)

	ttl := s.mr.TTL("test:k")
	s.GreaterOrEqual(ttl, 54*time.Second)
	s.LessOrEqual(ttl, 66*time.Second)
}

func (s *CacheTestSuite) TestGet_Miss() {
	var got cachedMatch
	s.ErrorIs(s.cache.Get(context.Background(), "absent", &got), ErrCacheMiss)
}

func (s *CacheTestSuite) TestGet_Corrupt() {
	s.Require().NoError(s.mr.Set("test:bad", "{not json"))
	var got cachedMatch
	err := s.cache.Get(context.Background(), "bad", &got)
	s.True(errors.IsCode(err, errors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestGetOrSet_LoadsOnce() {
	ctx := context.Background()
	var calls int32
	loader := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return cachedMatch{Label: "7", Tier: "weighted"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got cachedMatch
			s.NoError(s.cache.GetOrSet(ctx, "m", &got, time.Minute, loader))
			s.Equal("7", got.Label)
		}()
	}
	wg.Wait()
	s.Equal(int32(1), atomic.LoadInt32(&calls))

	var got cachedMatch
	s.NoError(s.cache.GetOrSet(ctx, "m", &got, time.Minute, loader))
	s.Equal(int32(1), atomic.LoadInt32(&calls))
}

func (s *CacheTestSuite) TestGetOrSet_LoaderError() {
	boom := stderrors.New("boom")
	var got cachedMatch
	err := s.cache.GetOrSet(context.Background(), "e", &got, 0, func(context.Context) (any, error) { return nil, boom })
	s.ErrorIs(err, boom)
	s.False(s.mr.Exists("test:e"))
}

func (s *CacheTestSuite) TestDeleteByPrefix() {
	ctx := context.Background()
	for _, k := range []string{"match:v1:a", "match:v1:b", "match:v2:a", "other"} {
		s.Require().NoError(s.cache.Set(ctx, k, 1, 0))
	}
	n, err := s.cache.DeleteByPrefix(ctx, "match:v1:")
	s.Require().NoError(err)
	s.Equal(int64(2), n)
	s.True(s.mr.Exists("test:match:v2:a"))
	s.True(s.mr.Exists("test:other"))

	s.NoError(s.cache.Delete(ctx, "other"))
	s.False(s.mr.Exists("test:other"))
	s.NoError(s.cache.Delete(ctx))
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestCache_BackendErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCache(NewClientWithUniversal(db, nil), nil, WithPrefix("p:"))
	ctx := context.Background()

	mock.ExpectGet("p:k").SetErr(stderrors.New("timeout"))
	var v int
	err := cache.Get(ctx, "k", &v)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))

	mock.ExpectScan(0, "p:x*", 100).SetErr(stderrors.New("timeout"))
	_, err = cache.DeleteByPrefix(ctx, "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_GetOrSetFallsBackWhenReadFails(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCache(NewClientWithUniversal(db, nil), nil, WithPrefix("p:"))

	mock.ExpectGet("p:k").SetErr(stderrors.New("timeout"))

	var v int
	err := cache.GetOrSet(context.Background(), "k", &v, time.Minute, func(context.Context) (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestJitterTTL(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := jitterTTL(time.Hour)
		assert.GreaterOrEqual(t, got, 54*time.Minute)
		assert.LessOrEqual(t, got, 66*time.Minute)
	}
	assert.Equal(t, time.Duration(0), jitterTTL(0))
}

//Personal.AI order the ending
