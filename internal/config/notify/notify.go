// Package notify provides typed change notification with scoped subscriptions.
//
// A Notifier delivers values of one type to every subscribed observer. Each
// Subscribe call returns a Subscription handle; releasing the handle with
// Unsubscribe (typically deferred by the owner) is the only way to stop
// delivery, so subscription lifetimes follow ordinary Go scoping.
package notify

import (
	"sort"
	"sync"
)

// Observer receives notifications.
type Observer[T any] func(value T)

// Subscription represents an active observer subscription.
type Subscription struct {
	once  sync.Once
	unsub func()
}

// Unsubscribe removes this subscription. Safe to call more than once and on
// a nil Subscription.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.unsub != nil {
			s.unsub()
		}
	})
}

// Notifier manages subscriptions for one notification type.
type Notifier[T any] struct {
	mu        sync.RWMutex
	observers map[uint64]Observer[T]
	nextID    uint64
	closed    bool
}

// New creates a new Notifier.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{observers: make(map[uint64]Observer[T])}
}

// Subscribe registers an observer.
func (n *Notifier[T]) Subscribe(observer Observer[T]) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.observers[id] = observer

	return &Subscription{unsub: func() { n.unsubscribe(id) }}
}

// Len returns the number of active subscriptions.
func (n *Notifier[T]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

// Notify sends value to all observers in subscription order. Observers are
// called outside the lock, so they may Subscribe or Unsubscribe.
func (n *Notifier[T]) Notify(value T) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	n.mu.RUnlock()
	n.deliver(value)
}

// Close stops delivery. Later Notify calls are dropped. Safe to call
// multiple times.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}

func (n *Notifier[T]) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.observers, id)
}

func (n *Notifier[T]) deliver(value T) {
	n.mu.RLock()
	ids := make([]uint64, 0, len(n.observers))
	for id := range n.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]Observer[T], 0, len(ids))
	for _, id := range ids {
		observers = append(observers, n.observers[id])
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(value)
	}
}
