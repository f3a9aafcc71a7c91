package redis

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TripMatch/internal/config"
	"github.com/turtacn/TripMatch/pkg/errors"
)

func TestNewClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.ErrorIs(t, client.Ping(context.Background()), ErrClientClosed)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), config.RedisConfig{Addr: addr}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestClient_PingError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewClientWithUniversal(db, nil)

	mock.ExpectPing().SetErr(stderrors.New("down"))
	assert.Error(t, client.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDefaults(t *testing.T) {
	cfg := config.RedisConfig{}
	applyDefaults(&cfg)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.NotZero(t, cfg.DialTimeout)
	assert.NotZero(t, cfg.ReadTimeout)
}

//Personal.AI order the ending
