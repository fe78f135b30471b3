// Package filter holds the user's feed filter selection.
//
// The selection has two independent facets: which category of sounds to
// show and how far back in time to look. The feed reads the current
// selection before every fetch; a change is a full invalidation trigger.
package filter

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/abelbrown/soundprints/internal/logging"
	"github.com/abelbrown/soundprints/internal/sound"
)

// Recency limits how old the fetched sounds may be.
type Recency string

const (
	RecencyAllTime Recency = "allTime"
	RecencyLastDay Recency = "lastDay"
)

// ParseRecency validates a recency name.
func ParseRecency(s string) (Recency, error) {
	switch Recency(s) {
	case RecencyAllTime, RecencyLastDay:
		return Recency(s), nil
	}
	return "", fmt.Errorf("unknown recency %q", s)
}

// Selection is a snapshot of both facets.
type Selection struct {
	Category sound.Category `json:"type"`
	Recency  Recency        `json:"age"`
}

// Default is the selection used before the user picks anything.
func Default() Selection {
	return Selection{Category: sound.CategoryNormal, Recency: RecencyAllTime}
}

// OnlyLastDay reports whether fetches must be limited to the last 24 hours.
func (s Selection) OnlyLastDay() bool {
	return s.Recency == RecencyLastDay
}

// preferenceKey is where the selection is persisted.
const preferenceKey = "filters"

// Persister stores string preferences. Implemented by *store.Store.
type Persister interface {
	GetPreference(key string) (string, bool, error)
	SetPreference(key, value string) error
}

// State owns the current selection and notifies subscribers of changes.
// Safe for concurrent use. Subscribers are called synchronously, outside
// the lock, on the goroutine that made the change.
type State struct {
	persister Persister

	mu      sync.RWMutex
	current Selection
	subs    map[int]func(Selection)
	nextSub int
}

// NewState loads the persisted selection, falling back to Default when
// nothing (or nothing readable) was stored. A nil persister keeps the
// selection in memory only.
func NewState(p Persister) *State {
	s := &State{
		persister: p,
		current:   Default(),
		subs:      make(map[int]func(Selection)),
	}
	if p == nil {
		return s
	}

	raw, ok, err := p.GetPreference(preferenceKey)
	if err != nil {
		logging.Warn("Failed to load filters", "error", err)
		return s
	}
	if !ok {
		return s
	}

	var loaded Selection
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		logging.Warn("Ignoring unreadable filters", "error", err)
		return s
	}
	if _, err := sound.ParseCategory(string(loaded.Category)); err != nil {
		return s
	}
	if _, err := ParseRecency(string(loaded.Recency)); err != nil {
		return s
	}
	s.current = loaded
	return s
}

// Current returns the active selection.
func (s *State) Current() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCategory changes the category facet.
func (s *State) SetCategory(c sound.Category) error {
	next := s.Current()
	next.Category = c
	return s.Set(next)
}

// SetRecency changes the recency facet.
func (s *State) SetRecency(r Recency) error {
	next := s.Current()
	next.Recency = r
	return s.Set(next)
}

// Set replaces the selection, persists it, and notifies subscribers.
// Setting the current value again is a no-op.
func (s *State) Set(sel Selection) error {
	if _, err := sound.ParseCategory(string(sel.Category)); err != nil {
		return err
	}
	if _, err := ParseRecency(string(sel.Recency)); err != nil {
		return err
	}

	s.mu.Lock()
	if s.current == sel {
		s.mu.Unlock()
		return nil
	}
	s.current = sel
	subs := make([]func(Selection), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	var persistErr error
	if s.persister != nil {
		data, err := json.Marshal(sel)
		if err != nil {
			persistErr = fmt.Errorf("encode filters: %w", err)
		} else if err := s.persister.SetPreference(preferenceKey, string(data)); err != nil {
			persistErr = fmt.Errorf("save filters: %w", err)
		}
	}

	logging.Info("Filters changed", "category", sel.Category, "recency", sel.Recency)
	for _, fn := range subs {
		fn(sel)
	}
	return persistErr
}

// Subscribe registers fn to be called after every change. The returned
// func removes the subscription.
func (s *State) Subscribe(fn func(Selection)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
