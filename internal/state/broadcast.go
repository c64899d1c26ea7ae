package state

import (
	"sync"
	"sync/atomic"
)

// Backlog bounds for the broadcast channels.
const (
	ChatBacklog   = 256 // per-session chat broadcast
	NotifyBacklog = 16  // session-list and global-members notifiers
)

// Broadcaster is a multi-producer, multi-subscriber channel with a bounded
// per-subscriber backlog. A subscriber that falls behind loses its oldest
// queued values and keeps receiving; it is never terminated by lag.
type Broadcaster[T any] struct {
	mu      sync.Mutex
	backlog int
	subs    map[*Subscription[T]]struct{}
}

// NewBroadcaster returns a broadcaster whose subscribers each buffer up to
// backlog values.
func NewBroadcaster[T any](backlog int) *Broadcaster[T] {
	if backlog <= 0 {
		backlog = 1
	}
	return &Broadcaster[T]{
		backlog: backlog,
		subs:    make(map[*Subscription[T]]struct{}),
	}
}

// Subscribe registers a new receiver. The caller must Unsubscribe when done.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		b:  b,
		ch: make(chan T, b.backlog),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish delivers v to every current subscriber. Full subscribers drop
// their oldest queued value so the publisher never blocks.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		for {
			select {
			case s.ch <- v:
			default:
				// Backlog full: evict the oldest value and retry.
				select {
				case <-s.ch:
					s.lagged.Add(1)
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscription is one receiver attached to a Broadcaster.
type Subscription[T any] struct {
	b      *Broadcaster[T]
	ch     chan T
	lagged atomic.Uint64
	once   sync.Once
}

// C is the receive channel. It is closed by Unsubscribe.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Lagged returns how many values were dropped because this subscriber
// fell behind the backlog bound.
func (s *Subscription[T]) Lagged() uint64 {
	return s.lagged.Load()
}

// Unsubscribe detaches the receiver and closes its channel. Safe to call
// more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()
		close(s.ch)
	})
}
