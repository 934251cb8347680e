package dashboard

import (
	"sync"
	"time"

	"svinn/internal/auth"
	"svinn/internal/cache"
)

// Subscriber delivers auth session events.
type Subscriber interface {
	Subscribe(handler func(auth.Event)) (unsubscribe func())
}

// Registry maps session ids to controllers. Idle controllers expire after
// idleTTL and are logged out when they leave the registry, as are the
// controllers of sessions that sign out.
type Registry struct {
	deps        Deps
	mu          sync.Mutex
	controllers *cache.LRUCache[*Controller]
	unsubscribe func()
}

func NewRegistry(deps Deps, events Subscriber, maxSessions int, idleTTL time.Duration) *Registry {
	r := &Registry{deps: deps.withDefaults()}
	r.controllers = cache.NewLRUCache[*Controller](maxSessions, idleTTL).
		WithSlidingTTL().
		OnEvict(func(sessionID string, c *Controller) {
			c.Logout()
			r.deps.Logger.Debug("Dashboard controller released", "session_id", sessionID)
		})
	if events != nil {
		r.unsubscribe = events.Subscribe(func(ev auth.Event) {
			if ev.Kind == auth.SignedOut {
				r.controllers.Delete(ev.Session.ID)
			}
		})
	}
	return r
}

// For returns the controller of s, creating an unauthenticated one on first
// use. The second result is false when the controller is new.
func (r *Registry) For(s auth.Session) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers.Get(s.ID); ok {
		return c, true
	}
	c := NewController(r.deps)
	r.controllers.Set(s.ID, c)
	return c, false
}

// Remove logs the session's controller out and forgets it.
func (r *Registry) Remove(sessionID string) {
	r.controllers.Delete(sessionID)
}

// Len returns the number of live controllers.
func (r *Registry) Len() int {
	return r.controllers.Size()
}

// Cache exposes the controller table for periodic expiry.
func (r *Registry) Cache() cache.Cleaner {
	return r.controllers
}

// Close stops listening for auth events.
func (r *Registry) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}
