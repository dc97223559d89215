package registry

import (
	"reflect"
	"sync"

	"github.com/c360/alertengine/types"
)

// Listener receives DefinitionsEvents the Registry fires on every
// successful mutation (§4.1, §6).
type Listener interface {
	OnDefinitionsEvent(types.DefinitionsEvent)
}

type subscription struct {
	eventType types.DefinitionsEventType
	listener  Listener
}

// listenerSet holds subscriptions and dispatches events to them in
// registration order, generalized from the capability-registration style
// in component/discovery.go (a mutex-guarded slice of registered
// observers, iterated in insertion order on every event).
type listenerSet struct {
	mu   sync.RWMutex
	subs []subscription
}

func newListenerSet() *listenerSet {
	return &listenerSet{}
}

// Subscribe registers listener for eventType. The same listener can
// subscribe to multiple event types; each call adds one subscription.
func (l *listenerSet) Subscribe(eventType types.DefinitionsEventType, listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, subscription{eventType, listener})
}

// Unsubscribe removes every subscription registered for listener,
// identified by reference equality per §4.1.
func (l *listenerSet) Unsubscribe(listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.subs[:0]
	for _, s := range l.subs {
		if reflect.ValueOf(s.listener).Pointer() != reflect.ValueOf(listener).Pointer() {
			out = append(out, s)
		}
	}
	l.subs = out
}

// Fire delivers ev synchronously, in registration order, to every listener
// subscribed to ev.Type.
func (l *listenerSet) Fire(ev types.DefinitionsEvent) {
	l.mu.RLock()
	subs := append([]subscription(nil), l.subs...)
	l.mu.RUnlock()
	for _, s := range subs {
		if s.eventType == ev.Type {
			s.listener.OnDefinitionsEvent(ev)
		}
	}
}
