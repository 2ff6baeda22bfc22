// Package uiloop provides the single interactive context: one goroutine that
// runs posted work in order, standing in for an editor's UI thread.
//
// Work running on the loop receives a context marked as interactive.
// Operations that must only run there check the mark with Require, and
// background code reaches the loop with Post (fire and forget) or Invoke
// (wait for the result).
package uiloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Errors returned by the loop.
var (
	// ErrNotInteractive indicates an operation was attempted off the loop.
	ErrNotInteractive = errors.New("not on the interactive loop")

	// ErrClosed indicates the loop has been closed.
	ErrClosed = errors.New("interactive loop closed")

	// ErrPanicked indicates posted work panicked.
	ErrPanicked = errors.New("interactive work panicked")
)

type loopKey struct{}

// Loop is a single-goroutine executor.
type Loop struct {
	queue  chan func()
	done   chan struct{}
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*options)

type options struct {
	queueSize int
	logger    *slog.Logger
}

// WithQueueSize sets how many posted functions may wait before Post blocks.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithLogger sets the logger used to report panics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates and starts a Loop.
func New(opts ...Option) *Loop {
	o := options{queueSize: 256, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	l := &Loop{
		queue:  make(chan func(), o.queueSize),
		done:   make(chan struct{}),
		logger: o.logger,
	}
	l.base, l.cancel = context.WithCancel(context.WithValue(context.Background(), loopKey{}, l))

	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post queues fn to run on the loop. It reports false if the loop is closed.
func (l *Loop) Post(fn func(ctx context.Context)) bool {
	return l.enqueue(context.Background(), func() {
		_ = l.protect(func() error {
			fn(l.base)
			return nil
		})
	})
}

func (l *Loop) enqueue(ctx context.Context, task func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- task:
		return true
	case <-l.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Invoke runs fn on the loop and waits for it. Called from the loop itself,
// fn runs inline. If ctx ends first Invoke returns ctx.Err() and fn, if not
// yet started, is skipped.
func (l *Loop) Invoke(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.owns(ctx) {
		return l.protect(func() error { return fn(ctx) })
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ictx := context.WithValue(ctx, loopKey{}, l)
	result := make(chan error, 1)
	ok := l.enqueue(ctx, func() {
		if err := ictx.Err(); err != nil {
			result <- err
			return
		}
		result <- l.protect(func() error { return fn(ictx) })
	})
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}
}

func (l *Loop) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("interactive work panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return fn()
}

func (l *Loop) owns(ctx context.Context) bool {
	owner, _ := ctx.Value(loopKey{}).(*Loop)
	return owner == l
}

// Close stops the loop. Queued work that has not started is dropped.
// Close must not be called from the loop.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.cancel()
		close(l.done)
		l.wg.Wait()
	})
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// IsInteractive reports whether ctx belongs to work running on a loop.
func IsInteractive(ctx context.Context) bool {
	_, ok := ctx.Value(loopKey{}).(*Loop)
	return ok
}

// Require returns ErrNotInteractive unless ctx belongs to work running on a loop.
func Require(ctx context.Context) error {
	if !IsInteractive(ctx) {
		return ErrNotInteractive
	}
	return nil
}
