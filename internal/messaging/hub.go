package messaging

import (
	"log/slog"
	"sync"
)

const defaultSubscriptionBuffer = 64

// Hub fans live messages out to subscribers of a conversation within
// this process
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

// Subscription receives live messages for one conversation until Close
type Subscription struct {
	C <-chan Message

	ch             chan Message
	conversationID string
	hub            *Hub
	once           sync.Once

	lagMu  sync.Mutex
	missed *Message
	lagged chan struct{}
}

// NewHub creates a Hub. buffer <= 0 uses the default per-subscriber buffer.
func NewHub(logger *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers for live messages of a conversation. The caller must
// Close the subscription when it stops reading.
func (h *Hub) Subscribe(conversationID string) *Subscription {
	ch := make(chan Message, h.buffer)
	sub := &Subscription{
		C:              ch,
		ch:             ch,
		conversationID: conversationID,
		hub:            h,
		lagged:         make(chan struct{}, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[*Subscription]struct{})
	}
	h.subs[conversationID][sub] = struct{}{}

	return sub
}

// Publish delivers msg to every subscriber of its conversation and returns
// how many received it. A subscriber whose buffer is full misses the
// message; the earliest miss is kept and Lagged fires so the reader can
// replay history from there.
func (h *Hub) Publish(msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[msg.ConversationID] {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			h.logger.Warn("Dropping live message for slow subscriber",
				slog.String("conversation_id", msg.ConversationID),
				slog.String("message_id", msg.ID),
			)
			sub.markMissed(msg)
		}
	}
	return delivered
}

// Subscribers returns the number of open subscriptions for a conversation
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

// Lagged receives a value after a message was dropped for this subscriber
func (s *Subscription) Lagged() <-chan struct{} {
	return s.lagged
}

// Missed returns the earliest dropped message since the last call and
// clears it
func (s *Subscription) Missed() (Message, bool) {
	s.lagMu.Lock()
	defer s.lagMu.Unlock()
	if s.missed == nil {
		return Message{}, false
	}
	m := *s.missed
	s.missed = nil
	return m, true
}

func (s *Subscription) markMissed(m Message) {
	s.lagMu.Lock()
	if s.missed == nil || m.before(*s.missed) {
		s.missed = &m
	}
	s.lagMu.Unlock()

	select {
	case s.lagged <- struct{}{}:
	default:
	}
}

// Close unregisters the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()

		if set, ok := h.subs[s.conversationID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.conversationID)
			}
		}
		close(s.ch)
	})
}
