package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xaenox/support-bot/internal/storage"
	"go.uber.org/zap"
)

type Config struct {
	MinuteMax    int
	HourlyMax    int
	MinuteWindow time.Duration
	HourlyWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinuteMax:    5,
		HourlyMax:    20,
		MinuteWindow: time.Minute,
		HourlyWindow: time.Hour,
	}
}

// window is a fixed-span request counter. When its age exceeds the window
// length it is reset rather than slid.
type window struct {
	count   int
	started time.Time
}

// Limiter enforces per-identity request caps over a minute and an hour
// window. Counters are process-local and keyed by the external chat
// identity, so an identity without a user record is still throttled.
// Exceeding the hour cap additionally persists a block on the user with a
// scheduled unblock; counters are lost on restart, the persisted block is
// not.
type Limiter struct {
	cfg    Config
	store  storage.Storage
	logger *zap.Logger

	mu      sync.Mutex
	minute  map[int64]*window
	hourly  map[int64]*window
	unblock map[int64]*time.Timer

	// Injection points for tests.
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func New(cfg Config, store storage.Storage, logger *zap.Logger) *Limiter {
	return &Limiter{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		minute:    make(map[int64]*window),
		hourly:    make(map[int64]*window),
		unblock:   make(map[int64]*time.Timer),
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// Exceeded reports whether the request from the given identity must be
// rejected. Persistence failures never reject a request on their own: the
// check fails open and logs the error.
func (l *Limiter) Exceeded(ctx context.Context, telegramID int64) bool {
	user, err := l.store.GetUserByTelegramID(ctx, telegramID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		l.logger.Error("Failed to look up user for rate check",
			zap.Error(err),
			zap.Int64("telegram_id", telegramID))
		return false
	}

	if user != nil && user.IsBlocked {
		return true
	}

	now := l.now()

	l.mu.Lock()
	hourlyCount := bump(l.hourly, telegramID, now, l.cfg.HourlyWindow)
	minuteCount := bump(l.minute, telegramID, now, l.cfg.MinuteWindow)
	l.mu.Unlock()

	if hourlyCount > l.cfg.HourlyMax {
		l.logger.Warn("Hourly request limit exceeded",
			zap.Int64("telegram_id", telegramID),
			zap.Int("limit", l.cfg.HourlyMax))
		if user != nil {
			if err := l.block(ctx, user.ID); err != nil {
				l.logger.Error("Failed to block user",
					zap.Error(err),
					zap.Int64("user_id", user.ID))
				return false
			}
		}
		return true
	}

	if minuteCount > l.cfg.MinuteMax {
		l.logger.Warn("Minute request limit exceeded",
			zap.Int64("telegram_id", telegramID),
			zap.Int("limit", l.cfg.MinuteMax))
		return true
	}

	return false
}

// bump resets an expired or missing counter to 1, otherwise increments it,
// and returns the resulting count.
func bump(windows map[int64]*window, id int64, now time.Time, span time.Duration) int {
	w, exists := windows[id]
	if !exists || now.Sub(w.started) > span {
		windows[id] = &window{count: 1, started: now}
		return 1
	}
	w.count++
	return w.count
}

// block persists the block and schedules the automatic unblock. A newer
// block supersedes any still-pending unblock timer for the same user. The
// timer does not survive a process restart; the user then stays blocked
// until an administrator clears the flag.
func (l *Limiter) block(ctx context.Context, userID int64) error {
	if err := l.store.SetUserBlocked(ctx, userID, true); err != nil {
		return err
	}

	l.mu.Lock()
	if t, exists := l.unblock[userID]; exists {
		t.Stop()
	}
	l.unblock[userID] = l.afterFunc(l.cfg.HourlyWindow, func() {
		if err := l.store.SetUserBlocked(context.Background(), userID, false); err != nil {
			l.logger.Error("Failed to unblock user",
				zap.Error(err),
				zap.Int64("user_id", userID))
			return
		}
		l.logger.Info("User has been automatically unblocked",
			zap.Int64("user_id", userID))
	})
	l.mu.Unlock()

	return nil
}

// Stop cancels all pending unblock timers.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, t := range l.unblock {
		t.Stop()
		delete(l.unblock, id)
	}
}
