package session

import (
	"log"
	"sync"
	"time"
)

// ProviderFactory opens an identity handle for one client. restoreToken is the
// session token the client presented, "" for a fresh client.
type ProviderFactory func(restoreToken string) IdentityProvider

type registryEntry struct {
	store    *Store
	lastSeen time.Time
}

// Registry keeps one Store per client id and drops the ones left idle.
type Registry struct {
	newProvider ProviderFactory
	docs        DocumentStore
	opts        Options
	idleTTL     time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(newProvider ProviderFactory, docs DocumentStore, opts Options, idleTTL time.Duration) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		newProvider: newProvider,
		docs:        docs,
		opts:        opts,
		idleTTL:     idleTTL,
		now:         opts.Now,
		entries:     make(map[string]*registryEntry),
		stop:        make(chan struct{}),
	}
}

// Acquire returns the Store for clientID, creating and initialising it on first use.
func (r *Registry) Acquire(clientID, restoreToken string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[clientID]; ok {
		e.lastSeen = r.now()
		return e.store
	}

	store := NewStore(r.newProvider(restoreToken), r.docs, r.opts)
	store.Init()
	r.entries[clientID] = &registryEntry{store: store, lastSeen: r.now()}
	return store
}

// Lookup returns an existing Store without creating one.
func (r *Registry) Lookup(clientID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[clientID]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.store, true
}

// Release closes and forgets the Store for clientID.
func (r *Registry) Release(clientID string) {
	r.mu.Lock()
	e, ok := r.entries[clientID]
	delete(r.entries, clientID)
	r.mu.Unlock()

	if ok {
		e.store.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// EvictIdle closes every Store unused for longer than the idle TTL.
func (r *Registry) EvictIdle() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var stale []*Store
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.store)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// Start runs the idle janitor until Close.
func (r *Registry) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.EvictIdle(); n > 0 {
					log.Printf("Evicted %d idle sessions", n)
				}
			case <-r.stop:
				return
			}
		}
	}()
}

// Close stops the janitor and closes every Store.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.store.Close()
	}
}
