// Package alerts holds the set of active safety alerts the scorer counts.
package alerts

import (
	"sort"
	"sync"

	"jalrakshak-monitor/internal/models"
)

// Feed is the current alert set
type Feed struct {
	mu      sync.Mutex
	alerts  map[string]models.AlertEvent
	order   []string
	nextSub int
	subs    map[int]func([]models.AlertEvent)
}

// NewFeed returns a feed holding the given alerts
func NewFeed(initial ...models.AlertEvent) *Feed {
	f := &Feed{alerts: make(map[string]models.AlertEvent), subs: make(map[int]func([]models.AlertEvent))}
	for _, a := range initial {
		f.putLocked(a)
	}
	return f
}

// Raise adds an alert or replaces the one with the same id
func (f *Feed) Raise(a models.AlertEvent) {
	f.mu.Lock()
	f.putLocked(a)
	subs, list := f.observersLocked()
	f.mu.Unlock()
	notify(subs, list)
}

// Clear removes an alert and reports whether it was present
func (f *Feed) Clear(id string) bool {
	f.mu.Lock()
	if _, ok := f.alerts[id]; !ok {
		f.mu.Unlock()
		return false
	}
	delete(f.alerts, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	subs, list := f.observersLocked()
	f.mu.Unlock()
	notify(subs, list)
	return true
}

// List returns the alerts, most recently raised first
func (f *Feed) List() []models.AlertEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listLocked()
}

// DangerCount returns the number of danger-severity alerts
func (f *Feed) DangerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.alerts {
		if a.Severity == models.SeverityDanger {
			n++
		}
	}
	return n
}

// Subscribe registers fn to receive the alert list after every change
func (f *Feed) Subscribe(fn func([]models.AlertEvent)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *Feed) putLocked(a models.AlertEvent) {
	if _, ok := f.alerts[a.ID]; ok {
		for i, v := range f.order {
			if v == a.ID {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
	f.alerts[a.ID] = a
	f.order = append([]string{a.ID}, f.order...)
}

func (f *Feed) listLocked() []models.AlertEvent {
	out := make([]models.AlertEvent, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.alerts[id])
	}
	return out
}

func (f *Feed) observersLocked() ([]func([]models.AlertEvent), []models.AlertEvent) {
	ids := make([]int, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func([]models.AlertEvent), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, f.subs[id])
	}
	return subs, f.listLocked()
}

func notify(subs []func([]models.AlertEvent), list []models.AlertEvent) {
	for _, fn := range subs {
		out := make([]models.AlertEvent, len(list))
		copy(out, list)
		fn(out)
	}
}
