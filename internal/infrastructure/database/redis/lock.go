package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeTrainingInProgress, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// LockOption customizes a Mutex.
type LockOption func(*Mutex)

// WithLockTTL sets the lease length.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(m *Mutex) { m.ttl = ttl }
}

// WithRetry makes Lock retry count times, delay apart.
func WithRetry(count int, delay time.Duration) LockOption {
	return func(m *Mutex) { m.retryCount, m.retryDelay = count, delay }
}

// WithWatchdog renews the lease every interval while the lock is held.
func WithWatchdog(interval time.Duration) LockOption {
	return func(m *Mutex) { m.watchdogInterval = interval }
}

// Mutex is a single-owner lease lock on one key. The owner token is random
// per Mutex, so only the Mutex that acquired the key can release it.
type Mutex struct {
	client *Client
	key    string
	value  string
	logger logging.Logger

	ttl              time.Duration
	retryCount       int
	retryDelay       time.Duration
	watchdogInterval time.Duration

	mu      sync.Mutex
	stopDog context.CancelFunc
	dogDone chan struct{}
}

// NewMutex returns an unlocked Mutex on prefix + "lock:" + name.
func NewMutex(client *Client, prefix, name string, log logging.Logger, opts ...LockOption) *Mutex {
	if log == nil {
		log = logging.NewNopLogger()
	}
	m := &Mutex{
		client:     client,
		key:        prefix + "lock:" + name,
		value:      uuid.NewString(),
		logger:     log.Named("lock"),
		ttl:        30 * time.Second,
		retryCount: 1,
		retryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key returns the Redis key.
func (m *Mutex) Key() string { return m.key }

// TryLock acquires the lock without waiting.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	if m.client.isClosed() {
		return false, ErrClientClosed
	}
	ok, err := m.client.rdb.SetNX(ctx, m.key, m.value, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to set lock")
	}
	if ok && m.watchdogInterval > 0 {
		m.startWatchdog()
	}
	return ok, nil
}

// Lock retries TryLock and returns ErrLockNotAcquired when every attempt
// finds the lock held.
func (m *Mutex) Lock(ctx context.Context) error {
	for i := 0; i < m.retryCount; i++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i == m.retryCount-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retryDelay):
		}
	}
	return ErrLockNotAcquired
}

// Unlock releases the lock if this Mutex still holds it.
func (m *Mutex) Unlock(ctx context.Context) error {
	m.stopWatchdog()
	res, err := unlockScript.Eval(ctx, m.client.rdb, []string{m.key}, m.value).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend resets the lease to ttl. It reports false when the lock was lost.
func (m *Mutex) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := extendScript.Eval(ctx, m.client.rdb, []string{m.key}, m.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to extend lock")
	}
	return res == 1, nil
}

func (m *Mutex) startWatchdog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	m.stopDog = cancel
	m.dogDone = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		t := time.NewTicker(m.watchdogInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				ok, err := m.Extend(ctx, m.ttl)
				if err != nil || !ok {
					m.logger.Warn("lock lease renewal failed", logging.String("key", m.key), logging.Err(err))
					return
				}
			}
		}
	}(m.dogDone)
}

func (m *Mutex) stopWatchdog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopDog != nil {
		m.stopDog()
		<-m.dogDone
		m.stopDog = nil
	}
}

//Personal.AI order the ending
