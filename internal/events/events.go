// Package events fans permission-decision and directory-change events out to
// active subscribers (SSE clients, dashboards).
package events

import (
	"context"
	"sync"
	"time"
)

// Kind labels what happened.
type Kind string

const (
	KindDecision        Kind = "decision"
	KindDirectoryChange Kind = "directory_change"
)

// Event is a single broadcastable occurrence.
type Event struct {
	Kind           Kind      `json:"kind"`
	ActorID        string    `json:"actor_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	PermissionKey  string    `json:"permission_key,omitempty"`
	Allowed        *bool     `json:"allowed,omitempty"`
	Resource       string    `json:"resource,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Decision builds a decision event.
func Decision(actorID, orgID, key string, allowed bool) Event {
	return Event{
		Kind:           KindDecision,
		ActorID:        actorID,
		OrganizationID: orgID,
		PermissionKey:  key,
		Allowed:        &allowed,
		Timestamp:      time.Now().UTC(),
	}
}

// DirectoryChange builds a directory-change event.
func DirectoryChange(orgID, resource string) Event {
	return Event{
		Kind:           KindDirectoryChange,
		OrganizationID: orgID,
		Resource:       resource,
		Timestamp:      time.Now().UTC(),
	}
}

// Stream fans events out to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fans the event out to all subscribers.
func (s *Stream) Publish(evt Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the number of active subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
