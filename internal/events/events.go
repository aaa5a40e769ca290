// Package events pushes session notifications to the browser tabs that hold a websocket
// open. Consumers that do not keep a live reference to the search state refresh
// themselves from the persisted copy when they receive PackagesUpdated.
package events

import (
	"context"
	"sync"
)

const (
	PackagesUpdated  = "actualizarPaquetes"
	Navigate         = "navegar"
	LocationsUpdated = "ubicaciones"
	FilterApplied    = "filtroAplicado"
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event)
}

type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Notify(ctx context.Context, e Event) {
	f(ctx, e)
}

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(context.Context, Event) {})

// Recorder keeps every event it receives, in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(ctx context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Count(eventType string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
