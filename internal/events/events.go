// Package events fans interview lifecycle events out to subscribers, with a
// bounded replay buffer for late joiners.
package events

import (
	"sync"
	"time"

	"github.com/prepdeck/interview-coach/internal/interview"
)

// Type classifies hub messages.
type Type string

const (
	TypeStatus Type = "status"
	TypeError  Type = "error"
)

// Event is one lifecycle message for an interview.
type Event struct {
	Seq         int64            `json:"seq"`
	Timestamp   time.Time        `json:"timestamp"`
	InterviewID string           `json:"interview_id"`
	Type        Type             `json:"type"`
	Stage       string           `json:"stage,omitempty"`
	Status      interview.Status `json:"status,omitempty"`
	Message     string           `json:"message,omitempty"`
}

type subscriber struct {
	interviewID string
	ch          chan Event
}

// Hub buffers recent events and delivers new ones to per-interview
// subscribers. Slow subscribers drop events rather than block publishers.
type Hub struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	subs      map[*subscriber]struct{}
}

func NewHub(maxEvents int) *Hub {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Hub{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		subs:      make(map[*subscriber]struct{}),
	}
}

// Publish assigns a sequence number and timestamp and delivers the event.
func (h *Hub) Publish(event Event) Event {
	h.mu.Lock()
	h.nextSeq++
	event.Seq = h.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.events = append(h.events, event)
	if len(h.events) > h.maxEvents {
		trim := len(h.events) - h.maxEvents
		h.events = append([]Event(nil), h.events[trim:]...)
	}

	for sub := range h.subs {
		if sub.interviewID != "" && sub.interviewID != event.InterviewID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	h.mu.Unlock()

	return event
}

// Subscribe registers for events of one interview id; an empty id receives
// everything. The returned cancel func must be called to release the
// subscription.
func (h *Hub) Subscribe(interviewID string) (<-chan Event, func()) {
	sub := &subscriber{
		interviewID: interviewID,
		ch:          make(chan Event, 32),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Since returns buffered events with sequence strictly greater than seq,
// optionally filtered to one interview id.
func (h *Hub) Since(seq int64, interviewID string) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Event
	for _, event := range h.events {
		if event.Seq <= seq {
			continue
		}
		if interviewID != "" && event.InterviewID != interviewID {
			continue
		}
		out = append(out, event)
	}
	return out
}
