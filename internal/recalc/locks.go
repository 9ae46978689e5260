package recalc

import (
	"errors"
	"sync"
)

// ErrRebuildInProgress is returned when a rebuild or deletion cannot acquire
// its scope lock. The engine never queues or retries; the caller retries.
var ErrRebuildInProgress = errors.New("a rebuild is already in progress for this scope")

// scopeGuard hands out exclusive in-process locks over rebuild scopes. A full
// rebuild takes the whole user scope; an incremental rebuild takes the
// (symbol, accountKey) groups its batch touches. The two conflict: a user
// scope cannot be taken while any of that user's group scopes is held, and
// vice versa.
type scopeGuard struct {
	mu     sync.Mutex
	users  map[string]bool
	groups map[string]map[string]bool // userID -> held group keys
}

func newScopeGuard() *scopeGuard {
	return &scopeGuard{
		users:  make(map[string]bool),
		groups: make(map[string]map[string]bool),
	}
}

// acquireUser takes the exclusive whole-user scope. Acquisition is try-only:
// a held conflicting scope fails immediately with ErrRebuildInProgress.
func (g *scopeGuard) acquireUser(userID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.users[userID] || len(g.groups[userID]) > 0 {
		return nil, ErrRebuildInProgress
	}
	g.users[userID] = true

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.users, userID)
	}, nil
}

// acquireGroups takes all given group scopes for the user, or none of them.
func (g *scopeGuard) acquireGroups(userID string, keys []string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.users[userID] {
		return nil, ErrRebuildInProgress
	}
	held := g.groups[userID]
	for _, key := range keys {
		if held[key] {
			return nil, ErrRebuildInProgress
		}
	}

	if held == nil {
		held = make(map[string]bool)
		g.groups[userID] = held
	}
	for _, key := range keys {
		held[key] = true
	}

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for _, key := range keys {
			delete(held, key)
		}
		if len(held) == 0 {
			delete(g.groups, userID)
		}
	}, nil
}
