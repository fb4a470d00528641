package signals

import (
	"sync"
	"sync/atomic"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// resultBusBuffer is the fan-out bus's per-subscriber channel capacity.
const resultBusBuffer = 100

// Envelope is what a ResultBus subscriber receives: either a PipelineResult
// or a Gap marker. Slow subscribers may miss messages (lossy broadcast) but
// the publisher never blocks on them. A Gap reaches a subscriber only when
// Publish finds its buffer full and a slot has freed by the time the Gap
// send is tried, so a missed result is not always followed by a Gap.
type Envelope struct {
	Result *types.PipelineResult
	Gap    bool
}

// ResultBus is a lossy, multi-consumer broadcast channel of PipelineResult
// values: a registry of subscriber channels guarded by a mutex, with
// non-blocking sends that drop (rather than block) on a full subscriber.
type ResultBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan Envelope
	nextID      atomic.Uint64
}

// NewResultBus builds an empty bus.
func NewResultBus() *ResultBus {
	return &ResultBus{subscribers: make(map[uint64]chan Envelope)}
}

// Subscription is a live handle on a ResultBus subscriber channel.
type Subscription struct {
	ID uint64
	Ch <-chan Envelope
}

// Subscribe registers a new receiver on the bus.
func (b *ResultBus) Subscribe() Subscription {
	id := b.nextID.Add(1)
	ch := make(chan Envelope, resultBusBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return Subscription{ID: id, Ch: ch}
}

// Unsubscribe removes and closes the subscriber's channel.
func (b *ResultBus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish fans result out to every subscriber without blocking. The result
// send is tried first; when a subscriber's buffer is full, one Gap send is
// tried instead, and if that would also block the subscriber misses the
// result with no marker. Missed results are not recorded, so later sends
// carry no Gap for them.
func (b *ResultBus) Publish(result types.PipelineResult) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- Envelope{Result: &result}:
		default:
			select {
			case ch <- Envelope{Gap: true}:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of active subscribers, for metrics.
func (b *ResultBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
