// Package broker fans messages out to subscriber channels.
package broker

import (
	"sync"
)

// DefaultCapacity is the subscriber buffer used by NewBroker.
const DefaultCapacity = 512

// Broker delivers every published message to all current subscribers. A
// subscriber whose buffer is full when a message arrives is dropped and its
// channel closed, so publishers never block.
type Broker[T any] struct {
	sync.Mutex
	capacity int
	subs     map[chan *T]struct{}
}

func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithCapacity[T](DefaultCapacity)
}

func NewBrokerWithCapacity[T any](capacity int) *Broker[T] {
	return &Broker[T]{
		capacity: capacity,
		subs:     make(map[chan *T]struct{}),
	}
}

func (b *Broker[T]) Subscribe() chan *T {
	b.Lock()
	defer b.Unlock()
	msgCh := make(chan *T, b.capacity)
	b.subs[msgCh] = struct{}{}
	return msgCh
}

// Unsubscribe closes msgCh. Unknown or already dropped channels are ignored.
func (b *Broker[T]) Unsubscribe(msgCh chan *T) {
	b.Lock()
	defer b.Unlock()
	b.drop(msgCh)
}

func (b *Broker[T]) drop(msgCh chan *T) {
	if _, ok := b.subs[msgCh]; ok {
		delete(b.subs, msgCh)
		close(msgCh)
	}
}

func (b *Broker[T]) Publish(msg *T) {
	b.Lock()
	defer b.Unlock()
	for msgCh := range b.subs {
		select {
		case msgCh <- msg:
		default:
			b.drop(msgCh)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker[T]) Subscribers() int {
	b.Lock()
	defer b.Unlock()
	return len(b.subs)
}
