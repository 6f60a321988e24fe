package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/healthlog/platform/internal/seed"
	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/store"
)

// Registry holds one manager per active uid. Sessions are created on
// first use and retired after the idle expiry or an explicit signout.
type Registry struct {
	store  store.Store
	seeder *seed.Seeder
	bus    Publisher
	cfg    config.SessionConfig

	mu       sync.Mutex
	sessions map[string]*Manager
}

// NewRegistry creates an empty session registry.
func NewRegistry(st store.Store, seeder *seed.Seeder, bus Publisher, cfg config.SessionConfig) *Registry {
	return &Registry{
		store:    st,
		seeder:   seeder,
		bus:      bus,
		cfg:      cfg,
		sessions: make(map[string]*Manager),
	}
}

// Get returns the open session for a uid, creating and opening one if
// needed. Concurrent calls for the same uid share one manager.
func (r *Registry) Get(ctx context.Context, uid string) (*Manager, error) {
	r.mu.Lock()
	m, ok := r.sessions[uid]
	if !ok {
		m = NewManager(uid, r.store, r.seeder, r.bus, r.cfg)
		r.sessions[uid] = m
	}
	r.mu.Unlock()

	if err := m.Open(ctx); err != nil {
		r.mu.Lock()
		if r.sessions[uid] == m {
			delete(r.sessions, uid)
		}
		r.mu.Unlock()
		return nil, err
	}
	return m, nil
}

// Remove closes and discards a uid's session. Used by signout and
// account deletion.
func (r *Registry) Remove(ctx context.Context, uid string) error {
	r.mu.Lock()
	m, ok := r.sessions[uid]
	delete(r.sessions, uid)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return m.Close(ctx)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll flushes and retires every session, for shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.sessions))
	for _, m := range r.sessions {
		managers = append(managers, m)
	}
	r.sessions = make(map[string]*Manager)
	r.mu.Unlock()

	for _, m := range managers {
		if err := m.Close(ctx); err != nil {
			log.Printf("WARN: session close failed: %v", err)
		}
	}
}

// StartReaper expires idle sessions in the background until ctx is
// cancelled.
func (r *Registry) StartReaper(ctx context.Context) {
	expiry := r.cfg.IdleExpiry
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(expiry / 4)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.reap(ctx, expiry)
			}
		}
	}()
}

func (r *Registry) reap(ctx context.Context, expiry time.Duration) {
	cutoff := time.Now().Add(-expiry)

	r.mu.Lock()
	var expired []*Manager
	for uid, m := range r.sessions {
		if m.LastActive().Before(cutoff) {
			expired = append(expired, m)
			delete(r.sessions, uid)
		}
	}
	r.mu.Unlock()

	for _, m := range expired {
		if err := m.Close(ctx); err != nil {
			log.Printf("WARN: idle session close failed: %v", err)
		}
	}
}
