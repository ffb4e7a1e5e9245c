// Package watch provides a last-value broadcast: subscribers see the most
// recent published value and are woken on every later publish. Slow
// subscribers skip intermediate values.
package watch

import "sync"

type Value[T any] struct {
	mu      sync.Mutex
	current T
	subs    map[*Subscription[T]]struct{}
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{current: initial, subs: make(map[*Subscription[T]]struct{})}
}

// Publish replaces the current value and wakes every subscriber. It never
// blocks.
func (v *Value[T]) Publish(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.current = val
	for s := range v.subs {
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}

func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Subscription is one receiver of a Value.
type Subscription[T any] struct {
	v  *Value[T]
	ch chan struct{}
}

// Subscribe registers a receiver; the current value counts as unseen.
func (v *Value[T]) Subscribe() *Subscription[T] {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := &Subscription[T]{v: v, ch: make(chan struct{}, 1)}
	s.ch <- struct{}{}
	v.subs[s] = struct{}{}
	return s
}

// Changed is signalled after each publish; bursts coalesce into one signal.
func (s *Subscription[T]) Changed() <-chan struct{} {
	return s.ch
}

// Latest returns the current value.
func (s *Subscription[T]) Latest() T {
	s.v.mu.Lock()
	defer s.v.mu.Unlock()
	return s.v.current
}

// Close unregisters the subscription. Changed is never closed.
func (s *Subscription[T]) Close() {
	s.v.mu.Lock()
	defer s.v.mu.Unlock()
	delete(s.v.subs, s)
}
