package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements SetNX and the script calls the locker issues.
type fakeRedis struct {
	redis.Scripter // unused methods panic

	mu       sync.Mutex
	values   map[string]string
	setErr   error
	releases int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys[0], args[0].(string))
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys[0], args[0].(string))
}

func (f *fakeRedis) release(key, token string) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	if f.values[key] == token {
		delete(f.values, key)
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) holder(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake)

	release, err := l.Lock(context.Background(), "lead-1")
	require.NoError(t, err)

	_, held := fake.holder(keyPrefix + "lead-1")
	assert.True(t, held)

	release()
	_, held = fake.holder(keyPrefix + "lead-1")
	assert.False(t, held)
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake, WithRetryInterval(5*time.Millisecond), WithWait(time.Second))

	first, err := l.Lock(context.Background(), "lead-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(context.Background(), "lead-1")
		if err == nil {
			second()
		}
		close(acquired)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	default:
	}

	first()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestRedisLocker_TimesOut(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake, WithRetryInterval(5*time.Millisecond), WithWait(30*time.Millisecond))

	release, err := l.Lock(context.Background(), "lead-1")
	require.NoError(t, err)
	defer release()

	_, err = l.Lock(context.Background(), "lead-1")
	assert.True(t, errors.Is(err, ErrLockTimeout))
}

func TestRedisLocker_ReleaseOnlyOwnToken(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake)

	release, err := l.Lock(context.Background(), "lead-1")
	require.NoError(t, err)

	// Simulate expiry and takeover by another replica.
	fake.mu.Lock()
	fake.values[keyPrefix+"lead-1"] = "someone-else"
	fake.mu.Unlock()

	release()
	owner, held := fake.holder(keyPrefix + "lead-1")
	assert.True(t, held)
	assert.Equal(t, "someone-else", owner)
}

func TestRedisLocker_BackendError(t *testing.T) {
	fake := newFakeRedis()
	fake.setErr = errors.New("connection refused")
	l := NewRedisLocker(fake)

	_, err := l.Lock(context.Background(), "lead-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLockTimeout))
	assert.Contains(t, err.Error(), "connection refused")
}
