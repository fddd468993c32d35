// Package queue provides the two-level (priority, normal) track backlog.
package queue

import (
	"sync"

	"github.com/samber/lo"

	"github.com/osa030/tubebox/internal/domain/track"
)

// Store holds the priority and normal backlogs.
// Tracks leave the backlog only through DequeueNext.
type Store struct {
	mu       sync.Mutex
	priority []track.Track
	normal   []track.Track
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		priority: make([]track.Track, 0),
		normal:   make([]track.Track, 0),
	}
}

// EnqueueNormal appends a track to the normal queue and returns its contents.
func (s *Store) EnqueueNormal(t track.Track) []track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.normal = append(s.normal, t)
	return clone(s.normal)
}

// EnqueuePriority appends a track to the priority queue and returns its contents.
func (s *Store) EnqueuePriority(t track.Track) []track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.priority = append(s.priority, t)
	return clone(s.priority)
}

// DequeueNext removes and returns the head of the priority queue,
// or of the normal queue when the priority queue is empty.
func (s *Store) DequeueNext() (track.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.priority) > 0 {
		t := s.priority[0]
		s.priority = s.priority[1:]
		return t, true
	}
	if len(s.normal) > 0 {
		t := s.normal[0]
		s.normal = s.normal[1:]
		return t, true
	}
	return track.Track{}, false
}

// Snapshot returns copies of both queues.
func (s *Store) Snapshot() (normal, priority []track.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return clone(s.normal), clone(s.priority)
}

// Len returns the size of both queues.
func (s *Store) Len() (normal, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.normal), len(s.priority)
}

func clone(tracks []track.Track) []track.Track {
	result := make([]track.Track, len(tracks))
	copy(result, tracks)
	return result
}

// Contains reports whether id is waiting in either queue.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := func(t track.Track) bool { return t.ID == id }
	return lo.ContainsBy(s.priority, match) || lo.ContainsBy(s.normal, match)
}
