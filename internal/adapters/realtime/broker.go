package realtime

import (
	"context"
	"sync"

	"liaison/internal/models"
	"liaison/internal/ports"
)

// Broker fans notices out to subscribers of a relationship.
type Broker interface {
	ports.NoticePublisher
	// Subscribe delivers notices of relationshipID until ctx ends or the
	// returned cancel func is called.
	Subscribe(ctx context.Context, relationshipID string) (<-chan models.Notice, func(), error)
}

const subscriberBuffer = 32

// LocalBroker is the in-process broker used when Redis is not configured.
// Slow subscribers drop notices rather than block publishers.
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan models.Notice]struct{}
}

var _ Broker = (*LocalBroker)(nil)

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan models.Notice]struct{})}
}

func (b *LocalBroker) PublishNotice(_ context.Context, n models.Notice) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[n.RelationshipID] {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context, relationshipID string) (<-chan models.Notice, func(), error) {
	ch := make(chan models.Notice, subscriberBuffer)
	b.mu.Lock()
	if b.subs[relationshipID] == nil {
		b.subs[relationshipID] = make(map[chan models.Notice]struct{})
	}
	b.subs[relationshipID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[relationshipID], ch)
			if len(b.subs[relationshipID]) == 0 {
				delete(b.subs, relationshipID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

// Subscribers reports how many live subscriptions relationshipID has.
func (b *LocalBroker) Subscribers(relationshipID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[relationshipID])
}
