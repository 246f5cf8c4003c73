package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/filipexyz/orchestrator/internal/config"
	"github.com/filipexyz/orchestrator/internal/hubstore"
)

// Manager owns the map of user_id -> *Hub, creating a hub on first
// connection for a user and tearing it down after hibernate_after_ms of no
// open sockets. Creation is serialized per user so two concurrent
// connections for a brand new user never race to build two hubs.
type Manager struct {
	cfg     *config.Config
	storeDir string
	log     *slog.Logger

	mu    sync.Mutex
	hubs  map[string]*managedHub
}

type managedHub struct {
	hub       *Hub
	idleSince time.Time // zero while active
}

func NewManager(cfg *config.Config, log *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		storeDir: cfg.HubStoreDir,
		log:      log,
		hubs:     make(map[string]*managedHub),
	}
}

// Acquire returns the running Hub for userID, creating and starting one
// (reloading its Registry from the durable store) if none exists yet.
func (m *Manager) Acquire(ctx context.Context, userID string) (*Hub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mh, ok := m.hubs[userID]; ok {
		mh.idleSince = time.Time{}
		return mh.hub, nil
	}

	store, err := hubstore.Open(m.storeDir, userID)
	if err != nil {
		return nil, err
	}
	h, err := NewHub(userID, m.cfg, store, m.log)
	if err != nil {
		store.Close()
		return nil, err
	}
	go h.Run()

	m.hubs[userID] = &managedHub{hub: h}
	return h, nil
}

// RunHibernationSweeper periodically evicts hubs that have had no open
// sockets for longer than cfg.HibernateAfter. Intended to run for the
// lifetime of the process on its own goroutine.
func (m *Manager) RunHibernationSweeper(ctx context.Context) {
	interval := m.cfg.HibernateAfter / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()

	m.mu.Lock()
	var toClose []*managedHub
	for userID, mh := range m.hubs {
		if mh.hub.ActiveConnections() > 0 {
			mh.idleSince = time.Time{}
			continue
		}
		if mh.idleSince.IsZero() {
			mh.idleSince = now
			continue
		}
		if now.Sub(mh.idleSince) >= m.cfg.HibernateAfter {
			toClose = append(toClose, mh)
			delete(m.hubs, userID)
		}
	}
	m.mu.Unlock()

	for _, mh := range toClose {
		m.log.Debug("hibernating idle hub", "user_id", mh.hub.userID)
		// Close stops the command loop; shutdown() inside it closes the
		// durable store. A fresh Acquire for this user reopens and
		// reloads it from scratch — the hibernation contract in §4.2.
		mh.hub.Close()
	}
}

// HubCount reports how many hubs are currently resident, for diagnostics.
func (m *Manager) HubCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hubs)
}
