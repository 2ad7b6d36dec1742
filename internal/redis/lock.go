package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds the caller's token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client redis.Cmdable
}

// NewLockStore creates a new LockStore.
func NewLockStore(client redis.Cmdable) *LockStore {
	return &LockStore{client: client}
}

// Lock is a held lock. Release it with ReleaseWalletLock.
type Lock struct {
	Key   string
	Token string
}

func walletLockKey(driverID string) string {
	return fmt.Sprintf("lock:wallet:%s", driverID)
}

// AcquireWalletLock attempts to acquire the withdrawal lock for a driver.
// It returns nil if the lock is already held.
func (s *LockStore) AcquireWalletLock(ctx context.Context, driverID string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{Key: walletLockKey(driverID), Token: uuid.NewString()}

	ok, err := s.client.SetNX(ctx, lock.Key, lock.Token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lock, nil
}

// ReleaseWalletLock releases a lock acquired by AcquireWalletLock. A lock that
// expired and was taken by someone else is left alone.
func (s *LockStore) ReleaseWalletLock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	return s.client.Eval(ctx, releaseScript, []string{lock.Key}, lock.Token).Err()
}
