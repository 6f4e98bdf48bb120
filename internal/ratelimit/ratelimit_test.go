package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type scheduledUnblock struct {
	delay time.Duration
	fn    func()
}

// newTestLimiter wires a limiter with a controllable clock and captured
// unblock timers so window expiry can be simulated without real delays.
func newTestLimiter(store storage.Storage, cfg Config) (*Limiter, *fakeClock, *[]scheduledUnblock) {
	clk := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	var captured []scheduledUnblock

	l := New(cfg, store, zap.NewNop())
	l.now = func() time.Time { return clk.now }
	l.afterFunc = func(d time.Duration, f func()) *time.Timer {
		captured = append(captured, scheduledUnblock{delay: d, fn: f})
		timer := time.AfterFunc(24*time.Hour, func() {})
		timer.Stop()
		return timer
	}

	return l, clk, &captured
}

func TestExceeded_MinuteWindow(t *testing.T) {
	store := storage.NewMemoryStorage()
	l, clk, _ := newTestLimiter(store, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.False(t, l.Exceeded(ctx, 100), "request %d should be accepted", i+1)
	}
	assert.True(t, l.Exceeded(ctx, 100), "6th request within the minute should be rejected")

	// The counter resets once the window has expired.
	clk.advance(61 * time.Second)
	assert.False(t, l.Exceeded(ctx, 100))
}

func TestExceeded_CountersAreKeyedByIdentity(t *testing.T) {
	store := storage.NewMemoryStorage()
	l, _, _ := newTestLimiter(store, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.False(t, l.Exceeded(ctx, 100))
	}
	assert.True(t, l.Exceeded(ctx, 100))
	assert.False(t, l.Exceeded(ctx, 200), "another identity has its own windows")
}

func TestExceeded_HourlyWindowBlocksUser(t *testing.T) {
	store := storage.NewMemoryStorage()
	user := &models.User{TelegramID: 100}
	require.NoError(t, store.CreateUser(context.Background(), user))

	l, clk, captured := newTestLimiter(store, DefaultConfig())
	ctx := context.Background()

	// Spread requests so only the hourly window fills up.
	for i := 0; i < 20; i++ {
		require.False(t, l.Exceeded(ctx, 100), "request %d should be accepted", i+1)
		if (i+1)%5 == 0 {
			clk.advance(61 * time.Second)
		}
	}

	assert.True(t, l.Exceeded(ctx, 100), "21st request within the hour should be rejected")

	got, err := store.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	assert.True(t, got.IsBlocked)

	require.Len(t, *captured, 1)
	assert.Equal(t, time.Hour, (*captured)[0].delay)

	// Firing the scheduled unblock clears the flag.
	(*captured)[0].fn()
	got, err = store.GetUserByTelegramID(ctx, 100)
	require.NoError(t, err)
	assert.False(t, got.IsBlocked)
}

func TestExceeded_BlockedUserRejectedImmediately(t *testing.T) {
	store := storage.NewMemoryStorage()
	user := &models.User{TelegramID: 100}
	require.NoError(t, store.CreateUser(context.Background(), user))
	require.NoError(t, store.SetUserBlocked(context.Background(), user.ID, true))

	l, _, _ := newTestLimiter(store, DefaultConfig())

	assert.True(t, l.Exceeded(context.Background(), 100))
}

func TestExceeded_UnregisteredIdentityStillThrottled(t *testing.T) {
	store := storage.NewMemoryStorage()
	l, _, _ := newTestLimiter(store, DefaultConfig())
	ctx := context.Background()

	// No user row exists for this identity; the counters work anyway.
	for i := 0; i < 5; i++ {
		require.False(t, l.Exceeded(ctx, 999))
	}
	assert.True(t, l.Exceeded(ctx, 999))
}

type blockFailingStorage struct {
	*storage.MemoryStorage
}

func (s *blockFailingStorage) SetUserBlocked(ctx context.Context, userID int64, blocked bool) error {
	return errors.New("connection refused")
}

func TestExceeded_FailsOpenWhenBlockPersistenceFails(t *testing.T) {
	mem := storage.NewMemoryStorage()
	user := &models.User{TelegramID: 100}
	require.NoError(t, mem.CreateUser(context.Background(), user))

	l, clk, _ := newTestLimiter(&blockFailingStorage{MemoryStorage: mem}, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.False(t, l.Exceeded(ctx, 100))
		if (i+1)%5 == 0 {
			clk.advance(61 * time.Second)
		}
	}

	assert.False(t, l.Exceeded(ctx, 100), "block persistence failure must not reject the request")
}

type lookupFailingStorage struct {
	*storage.MemoryStorage
}

func (s *lookupFailingStorage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func TestExceeded_FailsOpenWhenLookupFails(t *testing.T) {
	l, _, _ := newTestLimiter(&lookupFailingStorage{MemoryStorage: storage.NewMemoryStorage()}, DefaultConfig())

	assert.False(t, l.Exceeded(context.Background(), 100))
}
