package pubsub

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Broker is a simple in-memory pub/sub system used to stream scoreboard
// updates to websocket clients. Per topic only the latest message is kept,
// since a newer scoreboard update supersedes older ones.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan []byte
	latest      map[string][]byte
}

// ScoreboardUpdate is the payload published whenever a team's rank cache
// entry changes.
type ScoreboardUpdate struct {
	CID    uint `json:"cid"`
	TeamID uint `json:"team_id"`
}

func New() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan []byte),
		latest:      make(map[string][]byte),
	}
}

// ScoreboardTopic is the topic carrying one contest's scoreboard updates.
func ScoreboardTopic(cid uint) string {
	return fmt.Sprintf("scoreboard:%d", cid)
}

// Subscribe subscribes to a topic. A new subscriber first receives the
// latest retained message, then live messages. The returned function
// unsubscribes and closes the channel.
func (b *Broker) Subscribe(topic string) (<-chan []byte, func()) {
	b.mu.Lock()

	ch := make(chan []byte, 128)
	if msg, ok := b.latest[topic]; ok {
		ch <- msg
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subscribers[topic]
		for i, sub := range subscribers {
			if sub == ch {
				b.subscribers[topic] = append(subscribers[:i], subscribers[i+1:]...)
				close(ch)
				break
			}
		}
		zap.S().Debugf("unsubscribed from topic %s", topic)
	}

	zap.S().Debugf("new subscription to topic %s", topic)
	return ch, unsubscribe
}

// Publish delivers an update to all subscribers of a contest's scoreboard
// topic. Delivery is non-blocking; a slow client misses the update rather
// than stalling the publisher.
func (b *Broker) Publish(cid uint, update ScoreboardUpdate) {
	msg, err := json.Marshal(update)
	if err != nil {
		zap.S().Errorf("marshal scoreboard update: %v", err)
		return
	}
	topic := ScoreboardTopic(cid)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest[topic] = msg
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// CloseTopic closes all subscriber channels and drops the retained message
// for a topic, e.g. when a contest is deactivated.
func (b *Broker) CloseTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[topic]; ok {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(b.subscribers, topic)
		delete(b.latest, topic)
		zap.S().Infof("closed pubsub topic %s", topic)
	}
}
