package callsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix      = "callsync:lock:tenant:"
	lockRetryInterval  = 100 * time.Millisecond
	lockReleaseTimeout = 5 * time.Second
)

var ErrLockTimeout = errors.New("tenant_lock_timeout")

// Locker serialises sync cycles of the same tenant. The returned function
// releases the lock and must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, tenantID string) (func(), error)
}

// localLocker is a keyed mutex whose acquisition honours ctx.
type localLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func newLocalLocker() *localLocker {
	return &localLocker{slots: make(map[string]*lockSlot)}
}

func (l *localLocker) Lock(ctx context.Context, tenantID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[tenantID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[tenantID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(tenantID, slot)
		return nil, waitErr(ctx)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.release(tenantID, slot)
		})
	}, nil
}

func (l *localLocker) release(tenantID string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, tenantID)
	}
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisLocker extends tenant exclusion across processes with SET NX PX.
type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func newRedisLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) *redisLocker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
		log:    log.Named("callsync.locker"),
	}
}

func (l *redisLocker) Lock(ctx context.Context, tenantID string) (func(), error) {
	key := lockKeyPrefix + tenantID
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, waitErr(ctx)
			}
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, waitErr(ctx)
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				// the TTL frees the key eventually
				l.log.Warn("failed to release tenant lock", zap.String("tenant_id", tenantID), zap.Error(err))
			}
		})
	}, nil
}

func waitErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrLockTimeout
	}
	return ctx.Err()
}

// chainLocker acquires its lockers in order and releases them in reverse.
type chainLocker []Locker

func (c chainLocker) Lock(ctx context.Context, tenantID string) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, l := range c {
		unlock, err := l.Lock(ctx, tenantID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}

// NewLocker returns an in-process keyed mutex, chained with a redis lock when
// client is non-nil.
func NewLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) Locker {
	local := newLocalLocker()
	if client == nil {
		return local
	}
	return chainLocker{local, newRedisLocker(client, ttl, log)}
}
