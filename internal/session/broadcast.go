package session

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"propertylens/server/internal/models"
)

var ErrBroadcasterClosed = errors.New("broadcaster is closed")

// Broadcaster fans view snapshots out to stream subscribers.
type Broadcaster struct {
	subscribers map[int]chan *models.ViewState
	nextID      int
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
	logger      *logrus.Logger
}

// NewBroadcaster creates a broadcaster whose subscriber channels buffer the
// given number of snapshots.
func NewBroadcaster(bufferSize int, logger *logrus.Logger) *Broadcaster {
	if logger == nil {
		logger = logrus.New()
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Broadcaster{
		subscribers: make(map[int]chan *models.ViewState),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers a new snapshot channel. The returned cancel function
// removes the subscription and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan *models.ViewState, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrBroadcasterClosed
	}

	id := b.nextID
	b.nextID++
	ch := make(chan *models.ViewState, b.bufferSize)
	b.subscribers[id] = ch

	b.logger.WithField("subscriber_id", id).Debug("Subscriber added")
	return ch, func() { b.unsubscribe(id) }, nil
}

func (b *Broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish delivers a snapshot to every subscriber. A slow subscriber loses
// its oldest pending snapshot; each one is a complete state, so only the
// latest matters.
func (b *Broadcaster) Publish(state *models.ViewState) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
				b.logger.WithField("subscriber_id", id).Debug("Dropped snapshot for slow subscriber")
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel and rejects new subscriptions.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	return nil
}
