// Package notify fans out values to subscribers.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const multiplexerTimeout = 200 * time.Millisecond

type subscriber[E any] struct {
	ch      chan E
	comment string
}

// MultiplexerSender is the sending side of a Multiplexer.
type MultiplexerSender[E any] struct {
	m *Multiplexer[E]
}

// Send queues e for delivery to every subscriber. Values are delivered in order.
func (ms *MultiplexerSender[E]) Send(e E) {
	ms.m.currentLock.Lock()
	ms.m.current = e
	ms.m.currentLock.Unlock()
	ms.m.queue <- e
}

// Close stops delivery. Subscribers are not closed.
func (ms *MultiplexerSender[E]) Close() {
	close(ms.m.queue)
}

func NewMultiplexerSender[E any](comment string) (*MultiplexerSender[E], *Multiplexer[E]) {
	m := &Multiplexer[E]{
		comment: comment,
		queue:   make(chan E, 16),
	}
	go m.run()
	return &MultiplexerSender[E]{m: m}, m
}

type Multiplexer[E any] struct {
	comment         string
	queue           chan E
	currentLock     sync.Mutex
	current         E
	subscribersLock sync.Mutex
	subscribers     []subscriber[E]
}

// Current returns the value sent last, or the zero value.
func (m *Multiplexer[E]) Current() E {
	m.currentLock.Lock()
	defer m.currentLock.Unlock()
	return m.current
}

func (m *Multiplexer[E]) Subscribe(comment string, c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.subscribers = append(m.subscribers, subscriber[E]{
		ch:      c,
		comment: comment,
	})
}

func (m *Multiplexer[E]) Unsubscribe(c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	i := slices.IndexFunc(m.subscribers, func(sub subscriber[E]) bool { return sub.ch == c })
	if i == -1 {
		panic("already unsubscribed")
	}
	m.subscribers = slices.Delete(m.subscribers, i, i+1)
}

func (m *Multiplexer[E]) run() {
	for e := range m.queue {
		m.send(e)
	}
}

func (m *Multiplexer[E]) send(e E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- e:
		case <-time.After(multiplexerTimeout):
			zap.S().Warnf("multiplexer %s: subscriber %s timed out", m.comment, sub.comment)
		}
	}
}
