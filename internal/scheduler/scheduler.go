package scheduler

import (
	"sync"
	"time"
)

// Scheduler runs callbacks later. Timers are grouped by key (a room code) so
// that everything belonging to a room can be dropped at once.
type Scheduler interface {
	// After calls fn once after d.
	After(key string, d time.Duration, fn func())
	// Every calls fn each interval until it returns false.
	Every(key string, interval time.Duration, fn func() bool)
	// Cancel stops every pending timer under key.
	Cancel(key string)
	// Pending counts live timers under key.
	Pending(key string) int
	// Stop cancels everything and rejects new timers.
	Stop()
}

type entry struct {
	timer  *time.Timer
	ticker *time.Ticker
	done   chan struct{}
}

func (e *entry) stop() {
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.ticker != nil {
		e.ticker.Stop()
		close(e.done)
	}
}

// TimerScheduler is a Scheduler on top of time.AfterFunc and time.Ticker.
type TimerScheduler struct {
	mu      sync.Mutex
	groups  map[string]map[uint64]*entry
	next    uint64
	stopped bool
}

// New creates a TimerScheduler.
func New() *TimerScheduler {
	return &TimerScheduler{
		groups: make(map[string]map[uint64]*entry),
	}
}

func (s *TimerScheduler) add(key string, e *entry) (uint64, bool) {
	if s.stopped {
		return 0, false
	}
	s.next++
	id := s.next
	group, ok := s.groups[key]
	if !ok {
		group = make(map[uint64]*entry)
		s.groups[key] = group
	}
	group[id] = e
	return id, true
}

// remove drops an entry and reports whether it was still registered.
func (s *TimerScheduler) remove(key string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[key]
	if !ok {
		return false
	}
	if _, ok := group[id]; !ok {
		return false
	}
	delete(group, id)
	if len(group) == 0 {
		delete(s.groups, key)
	}
	return true
}

func (s *TimerScheduler) After(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{}
	id, ok := s.add(key, e)
	if !ok {
		return
	}
	e.timer = time.AfterFunc(d, func() {
		// a cancelled timer that already fired must not run
		if s.remove(key, id) {
			fn()
		}
	})
}

func (s *TimerScheduler) Every(key string, interval time.Duration, fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	id, ok := s.add(key, e)
	if !ok {
		e.ticker.Stop()
		return
	}

	go func() {
		for {
			select {
			case <-e.done:
				return
			case <-e.ticker.C:
				if !fn() {
					if s.remove(key, id) {
						e.stop()
					}
					return
				}
			}
		}
	}()
}

func (s *TimerScheduler) Cancel(key string) {
	s.mu.Lock()
	group := s.groups[key]
	delete(s.groups, key)
	s.mu.Unlock()

	for _, e := range group {
		e.stop()
	}
}

func (s *TimerScheduler) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups[key])
}

func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	groups := s.groups
	s.groups = make(map[string]map[uint64]*entry)
	s.stopped = true
	s.mu.Unlock()

	for _, group := range groups {
		for _, e := range group {
			e.stop()
		}
	}
}
