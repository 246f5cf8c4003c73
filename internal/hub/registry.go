package hub

import (
	"log/slog"
	"time"

	"github.com/filipexyz/orchestrator/internal/domain"
	"github.com/filipexyz/orchestrator/internal/hubstore"
)

// registry is the source of truth for which clients are live for one hub:
// an in-memory map mirrored into a durable local key-value store, plus a
// parallel map of socket handles the durable store never sees. It is only
// ever touched from the owning Hub's single goroutine — no locking.
type registry struct {
	userID string
	store  *hubstore.Store
	log    *slog.Logger

	clients map[string]domain.Client
	sockets map[string]*clientConn
}

func newRegistry(userID string, store *hubstore.Store, log *slog.Logger) *registry {
	return &registry{
		userID:  userID,
		store:   store,
		log:     log,
		clients: make(map[string]domain.Client),
		sockets: make(map[string]*clientConn),
	}
}

// loadFromStore rebuilds the in-memory maps from the durable store on cold
// start. Every restored row starts with no socket handle; the caller is
// responsible for emitting the Disconnected-then-remove sequence for rows
// that are not rejoined by a fresh register within the handshake window —
// in this implementation sockets are never restored across a process
// restart, so every reloaded row is immediately disconnected.
func (r *registry) loadFromStore() ([]domain.Client, error) {
	rows, err := r.store.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, c := range rows {
		r.clients[c.ID] = c
	}
	return rows, nil
}

// reconcileCold marks every row restored from a cold start as Disconnected
// and removes it, since this process never restores a live socket handle.
// It returns the disconnect broadcasts to emit, in map iteration order.
func (r *registry) reconcileCold() [][]byte {
	var broadcasts [][]byte
	for id := range r.clients {
		broadcasts = append(broadcasts, newClientDisconnected(id))
		delete(r.clients, id)
		_ = r.store.Delete(id)
	}
	return broadcasts
}

// register upserts a Client row for a newly registered socket. If a prior
// live socket exists for the same client_id, it returns that prior socket
// so the caller can close it with the displacement code before discarding
// the reference — the registry itself never closes a socket.
func (r *registry) register(clientID string, metadata domain.Metadata, conn *clientConn) (prior *clientConn, row domain.Client, err error) {
	now := time.Now().UTC()
	prior = r.sockets[clientID]

	connectedAt := now
	if existing, ok := r.clients[clientID]; ok {
		connectedAt = existing.ConnectedAt
	}

	initialStatus := metadata.Status
	if !domain.ValidStatus(initialStatus) || initialStatus == domain.StatusDisconnected {
		initialStatus = domain.StatusIdle
	}
	metadata.Status = initialStatus

	row = domain.Client{
		ID:          clientID,
		UserID:      r.userID,
		Metadata:    metadata,
		Status:      initialStatus,
		ConnectedAt: connectedAt,
		LastSeen:    now,
	}

	if err = r.store.PutRetry(row); err != nil {
		return prior, domain.Client{}, err
	}

	r.clients[clientID] = row
	r.sockets[clientID] = conn
	return prior, row, nil
}

var errNotRegistered = domain.ErrProtocolError

// updateStatus mutates the status and last_seen of an existing, registered
// client. Returns errNotRegistered if the client does not exist.
func (r *registry) updateStatus(clientID string, status domain.Status) (domain.Client, error) {
	row, ok := r.clients[clientID]
	if !ok {
		return domain.Client{}, errNotRegistered
	}
	row.Status = status
	row.LastSeen = time.Now().UTC()

	if err := r.store.PutRetry(row); err != nil {
		return domain.Client{}, err
	}
	r.clients[clientID] = row
	return row, nil
}

// touch updates last_seen only, used on ping, without changing status.
func (r *registry) touch(clientID string) (domain.Client, error) {
	row, ok := r.clients[clientID]
	if !ok {
		return domain.Client{}, errNotRegistered
	}
	row.LastSeen = time.Now().UTC()
	if err := r.store.PutRetry(row); err != nil {
		return domain.Client{}, err
	}
	r.clients[clientID] = row
	return row, nil
}

// remove deletes a client from both maps and the durable store. It is a
// no-op (returns ok=false) if the client does not exist, e.g. a socket
// closing after it was already displaced.
func (r *registry) remove(clientID string) (ok bool) {
	if _, exists := r.clients[clientID]; !exists {
		delete(r.sockets, clientID)
		return false
	}
	delete(r.clients, clientID)
	delete(r.sockets, clientID)
	if err := r.store.Delete(clientID); err != nil {
		r.log.Error("delete client row", "client_id", clientID, "error", err)
	}
	return true
}

// snapshot returns a point-in-time copy of all known Client rows, no
// socket handles, for hydrating a new browser or answering an RPC read.
func (r *registry) snapshot() []domain.Client {
	out := make([]domain.Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// isCurrentSocket reports whether conn is still the live socket registered
// for clientID — false means it was already displaced by a newer
// registration, so its own close must not evict the newer row.
func (r *registry) isCurrentSocket(clientID string, conn *clientConn) bool {
	return r.sockets[clientID] == conn
}

// find returns the metadata and socket handle for a live client, used by
// the Proxy Bridge. ok is false if the client is not currently registered.
func (r *registry) find(clientID string) (domain.Client, *clientConn, bool) {
	row, ok := r.clients[clientID]
	if !ok {
		return domain.Client{}, nil, false
	}
	return row, r.sockets[clientID], true
}

// evict returns the live socket for clientID for operator-initiated
// disconnection. The row itself is removed later, through the same
// close-then-remove path ordinary socket closure takes, once the close
// reaches the connection's read pump.
func (r *registry) evict(clientID string) (conn *clientConn, ok bool) {
	conn, ok = r.sockets[clientID]
	return conn, ok
}
