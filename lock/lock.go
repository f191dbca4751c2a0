// Package lock serializes seqno read and message submission per account.
// Two builds reading the same seqno produce colliding messages, only one of
// them can be accepted, so every sender of the same wallet must share a Locker.
package lock

import (
	"context"
	"sync"
)

type Locker interface {
	// Lock - blocks until key is acquired or ctx is done, unlock must be called exactly once
	Lock(ctx context.Context, key string) (func(), error)
}

// Local - in-process keyed mutex
type Local struct {
	mx    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	// capacity 1 channel is used as mutex to support ctx cancellation
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: map[string]*entry{}}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mx.Lock()
	if l.locks == nil {
		l.locks = map[string]*entry{}
	}
	e := l.locks[key]
	if e == nil {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mx.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key string, e *entry) {
	l.mx.Lock()
	defer l.mx.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *Local) size() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return len(l.locks)
}

// Nop - no mutual exclusion, for callers which serialize sends on their own
type Nop struct{}

func (Nop) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
