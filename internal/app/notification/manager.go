// Package notification fans jukebox events out to watch streams.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/domain/track"
)

// DefaultSendTimeout bounds a single subscriber send during Broadcast.
const DefaultSendTimeout = 500 * time.Millisecond

// Type identifies a notification.
type Type string

// Notification types
const (
	TypeInitialState Type = "initial_state"
	TypeNowPlaying   Type = "now_playing"
	TypeQueueUpdated Type = "queue_updated"
	TypeStateChanged Type = "state_changed"
	TypeProgress     Type = "progress"
	TypeTrackFailed  Type = "track_failed"
)

// Notification is a single message on a watch stream.
type Notification struct {
	Type     Type
	Sequence uint64
	Track    *track.Track // Subject of the notification, if any
	Status   playback.Status
	Queue    []track.Track
	Priority []track.Track
	Error    string
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

type subscription struct {
	id     string
	stream Stream

	// Held while a send to stream is in flight.
	sending sync.Mutex
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription

	sequenceNo   uint64
	sequenceNoMu sync.Mutex

	// Serializes stamping and delivery so streams see sequence order.
	broadcastMu sync.Mutex

	sendTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   DefaultSendTimeout,
		done:          make(chan struct{}),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	return m.add(stream).id
}

func (m *Manager) add(stream Stream) *subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &subscription{
		id:     uuid.New().String(),
		stream: stream,
	}
	m.subscriptions[sub.id] = sub
	zlog.Debug().Msgf("notification: subscribed: id=%s total=%d", sub.id, len(m.subscriptions))
	return sub
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[subscriptionID]; !ok {
		return
	}
	delete(m.subscriptions, subscriptionID)
	zlog.Debug().Msgf("notification: unsubscribed: id=%s total=%d", subscriptionID, len(m.subscriptions))
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast stamps n with the next sequence number and sends it to all
// subscribers in parallel. A subscriber that errors is dropped; one that
// does not accept the message within the send timeout misses it, along with
// every later message until that send returns.
func (m *Manager) Broadcast(n *Notification) {
	m.BroadcastWith(func() *Notification { return n })
}

// BroadcastWith builds the notification once earlier broadcasts have been
// delivered and then broadcasts it. Snapshots taken in build therefore carry
// sequence numbers in the order they were taken.
func (m *Manager) BroadcastWith(build func() *Notification) {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()

	n := build()
	n.Sequence = m.NextSequenceNo()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			if !s.sending.TryLock() {
				zlog.Debug().Msgf("notification: previous send pending, skipping: id=%s type=%s", s.id, n.Type)
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				defer s.sending.Unlock()
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed, dropping subscriber: id=%s error=%v", s.id, err)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: id=%s type=%s", s.id, n.Type)
			}
		}(sub)
	}

	wg.Wait()
}

// Send stamps n and sends it to a single subscriber.
func (m *Manager) Send(subscriptionID string, n *Notification) error {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()

	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if !sub.sending.TryLock() {
		return errors.Newf("previous send to %s still pending", subscriptionID)
	}
	return m.sendLocked(sub, n)
}

// SubscribeWith adds a subscription and sends it the notification built by
// initial before any broadcast can reach it. The subscription is removed if
// that send fails.
func (m *Manager) SubscribeWith(stream Stream, initial func() *Notification) (string, error) {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()

	sub := m.add(stream)
	sub.sending.Lock()
	if err := m.sendLocked(sub, initial()); err != nil {
		m.Unsubscribe(sub.id)
		return "", err
	}
	return sub.id, nil
}

// sendLocked must be called with sub.sending held and releases it.
func (m *Manager) sendLocked(sub *subscription, n *Notification) error {
	defer sub.sending.Unlock()
	n.Sequence = m.NextSequenceNo()
	return sub.stream.Send(n)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions and closes Done.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
	m.closeOnce.Do(func() { close(m.done) })
}

// Done is closed when the manager is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
