package bus

import (
	"sync"
	"time"
)

// MessageBus decouples chat channels from the agent core. It carries two
// unbounded FIFO queues: inbound (channels -> agent) and outbound
// (agent -> channels). Publishing never blocks; consuming blocks until a
// message arrives or the timeout elapses.
//
// Order is FIFO per publisher. There is no ordering guarantee between
// publishers, and behavior with more than one consumer per queue is
// undefined.
type MessageBus struct {
	inbound  queue[InboundMessage]
	outbound queue[OutboundMessage]
}

// NewMessageBus creates a new MessageBus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  newQueue[InboundMessage](),
		outbound: newQueue[OutboundMessage](),
	}
}

// PublishInbound enqueues a message from a channel to the agent.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound.push(msg)
}

// ConsumeInbound dequeues the next inbound message, waiting up to timeout.
// The second return value is false when the wait timed out.
func (b *MessageBus) ConsumeInbound(timeout time.Duration) (InboundMessage, bool) {
	return b.inbound.pop(timeout)
}

// PublishOutbound enqueues a response from the agent to the channels.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.outbound.push(msg)
}

// ConsumeOutbound dequeues the next outbound message, waiting up to timeout.
func (b *MessageBus) ConsumeOutbound(timeout time.Duration) (OutboundMessage, bool) {
	return b.outbound.pop(timeout)
}

// InboundPending returns the number of queued inbound messages.
func (b *MessageBus) InboundPending() int { return b.inbound.len() }

// OutboundPending returns the number of queued outbound messages.
func (b *MessageBus) OutboundPending() int { return b.outbound.len() }

// queue is an unbounded FIFO with a signalled blocking pop. A buffered
// channel would bound the queue and block publishers, so the backlog lives
// in a slice and the channel only carries wakeups.
type queue[T any] struct {
	mu    *sync.Mutex
	items *[]T
	wake  chan struct{}
}

func newQueue[T any]() queue[T] {
	return queue[T]{
		mu:    &sync.Mutex{},
		items: &[]T{},
		wake:  make(chan struct{}, 1),
	}
}

func (q queue[T]) push(v T) {
	q.mu.Lock()
	*q.items = append(*q.items, v)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q queue[T]) pop(timeout time.Duration) (T, bool) {
	var zero T
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(*q.items) > 0 {
			v := (*q.items)[0]
			*q.items = (*q.items)[1:]
			if len(*q.items) > 0 {
				// More queued: keep the wakeup armed for the next pop.
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return v, true
		}
		q.mu.Unlock()

		remain := time.Until(deadline)
		if remain <= 0 {
			return zero, false
		}
		timer := time.NewTimer(remain)
		select {
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
			return zero, false
		}
	}
}

func (q queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(*q.items)
}
