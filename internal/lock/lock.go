// Package lock provides named mutual exclusion with a bounded wait.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when the lock could not be taken within the wait.
var ErrBusy = errors.New("lock: wait timed out")

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

type Locker interface {
	Acquire(ctx context.Context, name string, wait time.Duration) (Release, error)
}

// With runs fn while holding the named lock and releases it on every exit path.
func With(ctx context.Context, l Locker, name string, wait time.Duration, fn func(context.Context) error) error {
	release, err := l.Acquire(ctx, name, wait)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Local is an in-process Locker. One buffered channel per name acts as the
// mutex so a waiter can give up on a timer.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[name]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[name] = ch
	}
	return ch
}

func (l *Local) Acquire(ctx context.Context, name string, wait time.Duration) (Release, error) {
	ch := l.slot(name)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}
