// Package ratelimit gates throttled user actions with a cooldown window measured from
// the last accepted action, persisted in a durable record store.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

type Action string

const (
	ActionComment Action = "comment"
)

const DefaultCommentCooldown = 10 * time.Second

// Store persists the last accepted action per user and action kind.
type Store interface {
	LastAction(ctx context.Context, userID string, action Action) (time.Time, bool, error)
	SetLastAction(ctx context.Context, userID string, action Action, at time.Time) error
}

type Decision struct {
	Allowed   bool
	Remaining time.Duration
}

// RemainingSeconds rounds the remaining cooldown up to whole seconds.
func (d Decision) RemainingSeconds() int {
	if d.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(d.Remaining.Seconds()))
}

type Limiter struct {
	store     Store
	cooldowns map[Action]time.Duration
	now       func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithCooldown sets the window for one action kind; zero disables throttling for it.
func WithCooldown(action Action, cooldown time.Duration) Option {
	return func(l *Limiter) {
		l.cooldowns[action] = cooldown
	}
}

func NewLimiter(store Store, options ...Option) *Limiter {
	limiter := &Limiter{
		store: store,
		cooldowns: map[Action]time.Duration{
			ActionComment: DefaultCommentCooldown,
		},
		now: time.Now,
	}
	for _, option := range options {
		option(limiter)
	}
	return limiter
}

func (l *Limiter) Cooldown(action Action) time.Duration {
	return l.cooldowns[action]
}

// Check re-reads the durable record on every call.
func (l *Limiter) Check(ctx context.Context, userID string, action Action) (Decision, error) {
	cooldown := l.cooldowns[action]
	if cooldown <= 0 {
		return Decision{Allowed: true}, nil
	}

	last, ok, err := l.store.LastAction(ctx, userID, action)
	if err != nil {
		return Decision{}, fmt.Errorf("read rate limit record: %w", err)
	}
	if !ok {
		return Decision{Allowed: true}, nil
	}

	elapsed := l.now().Sub(last)
	if elapsed >= cooldown {
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: false, Remaining: cooldown - elapsed}, nil
}

// Record stamps an accepted action. Callers invoke it only once the action succeeded.
func (l *Limiter) Record(ctx context.Context, userID string, action Action) error {
	if l.cooldowns[action] <= 0 {
		return nil
	}
	err := l.store.SetLastAction(ctx, userID, action, l.now())
	if err != nil {
		return fmt.Errorf("write rate limit record: %w", err)
	}
	return nil
}
