package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/metrics"
)

// Registry tracks open connections, their topics and the room each one is
// subscribed to. All state is guarded by a single lock so that joins, leaves
// and disconnects are atomic with respect to each other.
type Registry struct {
	mu sync.RWMutex

	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
	rooms   map[*Client]int64
	// presence counts subscribed connections per room and user.
	presence map[int64]map[int64]int

	metrics *metrics.Metrics
	log     *zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(m *metrics.Metrics, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		clients:  make(map[*Client]struct{}),
		topics:   make(map[string]map[*Client]struct{}),
		joined:   make(map[*Client]map[string]struct{}),
		rooms:    make(map[*Client]int64),
		presence: make(map[int64]map[int64]int),
		metrics:  m,
		log:      logger,
	}
}

// Register adds c and joins it to its user's notification topic.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c]; ok {
		return
	}
	r.clients[c] = struct{}{}
	r.joinLocked(NotificationTopic(c.UserID), c)
	r.metrics.ConnectionOpened()

	r.log.Debug().Str("client", c.ID).Int64("user_id", c.UserID).Msg("client registered")
}

// Unregister removes c from every topic and room and closes it.
// It reports whether c was registered.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.removeLocked(c) {
		return false
	}
	r.log.Debug().Str("client", c.ID).Int64("user_id", c.UserID).Msg("client unregistered")
	return true
}

// Active reports whether c is registered.
func (r *Registry) Active(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.clients[c]
	return ok
}

// Attach subscribes c to roomID, leaving any room it was subscribed to before.
// It returns false if c is not registered.
func (r *Registry) Attach(c *Client, roomID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c]; !ok {
		return false
	}
	if current, ok := r.rooms[c]; ok {
		if current == roomID {
			return true
		}
		r.detachLocked(c)
	}

	r.joinLocked(RoomTopic(roomID), c)
	r.rooms[c] = roomID
	users := r.presence[roomID]
	if users == nil {
		users = make(map[int64]int)
		r.presence[roomID] = users
	}
	users[c.UserID]++
	r.metrics.Subscribed()
	return true
}

// Detach removes c from its room. It returns the room and whether c was subscribed.
func (r *Registry) Detach(c *Client) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.detachLocked(c)
}

// DetachUser removes every connection of userID from roomID and returns them.
func (r *Registry) DetachUser(userID, roomID int64) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.presence[roomID][userID] == 0 {
		return nil
	}
	var detached []*Client
	for c := range r.topics[RoomTopic(roomID)] {
		if c.UserID == userID {
			detached = append(detached, c)
		}
	}
	for _, c := range detached {
		r.detachLocked(c)
	}
	return detached
}

// RoomOf returns the room c is subscribed to.
func (r *Registry) RoomOf(c *Client) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.rooms[c]
	return roomID, ok
}

// ConnectedUsers returns the users with at least one connection subscribed to roomID.
func (r *Registry) ConnectedUsers(roomID int64) map[int64]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(map[int64]struct{}, len(r.presence[roomID]))
	for userID := range r.presence[roomID] {
		users[userID] = struct{}{}
	}
	return users
}

// Subscribers returns the number of connections on topic.
func (r *Registry) Subscribers(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.topics[topic])
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// Publish delivers ev to every connection on topic and returns how many
// received it. Connections whose queue is full miss the event.
func (r *Registry) Publish(topic string, ev *Event) int {
	r.mu.RLock()
	subs := make([]*Client, 0, len(r.topics[topic]))
	for c := range r.topics[topic] {
		subs = append(subs, c)
	}
	r.mu.RUnlock()

	delivered, dropped := 0, 0
	for _, c := range subs {
		if deliver(c, ev) {
			delivered++
			continue
		}
		dropped++
		r.log.Warn().Str("client", c.ID).Str("topic", topic).Str("event", ev.Kind.String()).Msg("dropping event for slow client")
	}
	r.metrics.Published(topicFamily(topic), delivered, dropped)
	return delivered
}

// Send delivers ev to c alone.
func (r *Registry) Send(c *Client, ev *Event) bool {
	if !r.Active(c) {
		return false
	}
	if deliver(c, ev) {
		return true
	}
	r.log.Warn().Str("client", c.ID).Str("event", ev.Kind.String()).Msg("dropping event for slow client")
	return false
}

// CloseAll unregisters every connection and returns them.
func (r *Registry) CloseAll() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	closed := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		closed = append(closed, c)
	}
	for _, c := range closed {
		r.removeLocked(c)
	}
	return closed
}

func deliver(c *Client, ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

func (r *Registry) removeLocked(c *Client) bool {
	if _, ok := r.clients[c]; !ok {
		return false
	}
	r.detachLocked(c)
	for topic := range r.joined[c] {
		r.leaveLocked(topic, c)
	}
	delete(r.joined, c)
	delete(r.clients, c)
	c.close()
	r.metrics.ConnectionClosed()
	return true
}

func (r *Registry) detachLocked(c *Client) (int64, bool) {
	roomID, ok := r.rooms[c]
	if !ok {
		return 0, false
	}
	delete(r.rooms, c)
	r.leaveLocked(RoomTopic(roomID), c)

	if users := r.presence[roomID]; users != nil {
		users[c.UserID]--
		if users[c.UserID] <= 0 {
			delete(users, c.UserID)
		}
		if len(users) == 0 {
			delete(r.presence, roomID)
		}
	}
	r.metrics.Unsubscribed()
	return roomID, true
}

func (r *Registry) joinLocked(topic string, c *Client) {
	subs := r.topics[topic]
	if subs == nil {
		subs = make(map[*Client]struct{})
		r.topics[topic] = subs
	}
	subs[c] = struct{}{}

	topics := r.joined[c]
	if topics == nil {
		topics = make(map[string]struct{})
		r.joined[c] = topics
	}
	topics[topic] = struct{}{}
}

func (r *Registry) leaveLocked(topic string, c *Client) {
	if subs := r.topics[topic]; subs != nil {
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.topics, topic)
		}
	}
	if topics := r.joined[c]; topics != nil {
		delete(topics, topic)
	}
}
