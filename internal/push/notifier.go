// Package push implements the rate-limited push delivery queue and the
// notifier registry it drains into.
package push

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// Notifier delivers private text messages for one platform session.
type Notifier interface {
	// PlatformID returns the bare platform name, e.g. "telegram".
	PlatformID() string
	// SelfID returns the identity of the session's own account.
	SelfID() string
	SendPrivate(ctx context.Context, userID, text string) error
}

// ErrRecipientUnreachable reports the known failure of sending a private
// message to an account that cannot receive one, such as another bot.
var ErrRecipientUnreachable = errors.New("recipient cannot receive private messages")

// SandboxPlatform is a simulated channel: deliveries to it bypass the
// notifier entirely but are still recorded.
const SandboxPlatform = "sandbox"

// Registry holds the notifier sessions currently available for delivery,
// keyed by platform-session identity ("platform:selfID").
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates an empty notifier registry.
func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

func sessionKey(n Notifier) string {
	return n.PlatformID() + ":" + n.SelfID()
}

// Register adds a notifier session, replacing any previous session with
// the same identity.
func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[sessionKey(n)] = n
}

// Unregister removes a notifier session.
func (r *Registry) Unregister(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notifiers, sessionKey(n))
}

// Resolve returns the notifier for the given platform identifier. An exact
// platform-session match is preferred; otherwise any session registered
// under the same bare platform name substitutes, reported by the second
// return value. Returns nil when no session fits.
func (r *Registry) Resolve(platformID string) (Notifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n, ok := r.notifiers[platformID]; ok {
		return n, false
	}

	bare, _, _ := strings.Cut(platformID, ":")
	var keys []string
	for key, n := range r.notifiers {
		if n.PlatformID() == bare {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, false
	}
	sort.Strings(keys)
	return r.notifiers[keys[0]], true
}
