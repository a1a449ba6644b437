package notifications

import (
	"sync"

	"github.com/comedorlabs/comedor-backend/pkg/db/models"
	"github.com/google/uuid"
)

// EventKind labels a change on a user's notification stream.
type EventKind string

const (
	EventInsert  EventKind = "insert"
	EventUpdate  EventKind = "update"
	EventDelete  EventKind = "delete"
	EventAllRead EventKind = "all_read"
	EventCleared EventKind = "cleared"
)

// Event describes one change on a user's notification stream. The
// Notification pointer is nil for the user-scoped kinds (all_read, cleared).
type Event struct {
	Kind         EventKind
	UserID       uuid.UUID
	Notification *models.Notification
}

// DefaultFeedBuffer is the per-subscription channel depth when none is configured.
const DefaultFeedBuffer = 64

// Subscription is one consumer's handle on a user's change stream. Events()
// must be drained promptly; when the buffer overflows the subscription is
// marked lagged and stops receiving, and the consumer recovers with a refetch.
type Subscription struct {
	userID  uuid.UUID
	events  chan Event
	lagged  chan struct{}
	once    sync.Once
	lagOnce sync.Once
	broker  *Broker
}

// Events returns the stream of change events for the subscribed user.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Lagged is closed when the subscription missed at least one event.
func (s *Subscription) Lagged() <-chan struct{} {
	return s.lagged
}

// Unsubscribe detaches from the broker and closes the event channel. Safe to
// call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.events)
	})
}

// markLagged is safe for concurrent publishers; the channel closes once.
func (s *Subscription) markLagged() {
	s.lagOnce.Do(func() {
		close(s.lagged)
	})
}

// Broker fans notification change events out to per-user subscribers. It is
// purely in-process; each deployment unit that mutates notifications also
// publishes here so live views in the same process converge.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	buffer int
}

// NewBroker builds a broker with the given per-subscription buffer depth.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Broker{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new consumer for the user's change stream.
func (b *Broker) Subscribe(userID uuid.UUID) *Subscription {
	sub := &Subscription{
		userID: userID,
		events: make(chan Event, b.buffer),
		lagged: make(chan struct{}),
		broker: b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*Subscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	return sub
}

// Publish delivers the event to every live subscriber of the event's user.
// Delivery never blocks: a subscriber whose buffer is full is marked lagged
// and skipped from then on.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[event.UserID] {
		select {
		case <-sub.lagged:
			continue
		default:
		}
		select {
		case sub.events <- event:
		default:
			sub.markLagged()
		}
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[sub.userID]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.userID)
	}
}
