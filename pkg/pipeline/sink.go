package pipeline

import (
	"sync"
	"time"

	"github.com/teslashibe/posecam/pkg/motion"
)

// Sink holds the most recent motion score and fans it out to subscribers.
// Publish never blocks; slow subscribers only see the newest score.
type Sink struct {
	mu      sync.RWMutex
	latest  motion.Score
	set     bool
	updated time.Time
	subs    map[int]chan motion.Score
	nextID  int
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{subs: make(map[int]chan motion.Score)}
}

// Publish records score and notifies subscribers.
func (s *Sink) Publish(score motion.Score) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = score
	s.set = true
	s.updated = time.Now()

	for _, ch := range s.subs {
		select {
		case ch <- score:
		default:
			// drop the stale value and retry once
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- score:
			default:
			}
		}
	}
}

// Latest returns the most recent score and whether one was ever published.
func (s *Sink) Latest() (motion.Score, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.set
}

// Updated returns when the last score was published.
func (s *Sink) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// Subscribe returns a channel receiving new scores and a function that
// unsubscribes and closes it.
func (s *Sink) Subscribe() (<-chan motion.Score, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan motion.Score, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}
