package hub

import (
	"log/slog"
	"testing"

	"github.com/filipexyz/orchestrator/internal/domain"
	"github.com/filipexyz/orchestrator/internal/hubstore"
)

func newTestRegistry(t *testing.T) *registry {
	t.Helper()
	store, err := hubstore.Open(t.TempDir(), "user-1")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return newRegistry("user-1", store, slog.Default())
}

func TestRegistryRegisterAndSnapshot(t *testing.T) {
	r := newTestRegistry(t)

	prior, row, err := r.register("c1", domain.Metadata{Hostname: "h", Project: "/p"}, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if prior != nil {
		t.Fatalf("expected no prior socket, got %v", prior)
	}
	if row.Status != domain.StatusIdle {
		t.Fatalf("status = %v, want idle", row.Status)
	}

	snap := r.snapshot()
	if len(snap) != 1 || snap[0].ID != "c1" {
		t.Fatalf("snapshot = %+v, want [c1]", snap)
	}
}

func TestRegistryDisplacement(t *testing.T) {
	r := newTestRegistry(t)

	firstConn := &clientConn{}
	if _, _, err := r.register("c1", domain.Metadata{Hostname: "h", Project: "/p"}, firstConn); err != nil {
		t.Fatalf("first register: %v", err)
	}

	secondConn := &clientConn{}
	prior, row, err := r.register("c1", domain.Metadata{Hostname: "h", Project: "/p", Status: domain.StatusActive}, secondConn)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if prior != firstConn {
		t.Fatalf("prior socket = %v, want firstConn", prior)
	}
	if row.Status != domain.StatusActive {
		t.Fatalf("status = %v, want active", row.Status)
	}

	snap := r.snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1 (exactly one live c1)", len(snap))
	}
	if !r.isCurrentSocket("c1", secondConn) {
		t.Fatalf("secondConn should be the current socket for c1")
	}
	if r.isCurrentSocket("c1", firstConn) {
		t.Fatalf("firstConn should no longer be the current socket for c1")
	}
}

func TestRegistryUpdateStatusRequiresExisting(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.updateStatus("missing", domain.StatusBusy); err != errNotRegistered {
		t.Fatalf("updateStatus on missing client: err = %v, want errNotRegistered", err)
	}

	if _, _, err := r.register("c1", domain.Metadata{Hostname: "h", Project: "/p"}, &clientConn{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	row, err := r.updateStatus("c1", domain.StatusBusy)
	if err != nil {
		t.Fatalf("updateStatus: %v", err)
	}
	if row.Status != domain.StatusBusy {
		t.Fatalf("status = %v, want busy", row.Status)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := newTestRegistry(t)

	if _, _, err := r.register("c1", domain.Metadata{Hostname: "h", Project: "/p"}, &clientConn{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if ok := r.remove("c1"); !ok {
		t.Fatalf("remove returned false, want true")
	}
	if ok := r.remove("c1"); ok {
		t.Fatalf("second remove returned true, want false (no-op)")
	}
	if len(r.snapshot()) != 0 {
		t.Fatalf("snapshot not empty after remove")
	}
}

func TestRegistryFind(t *testing.T) {
	r := newTestRegistry(t)
	conn := &clientConn{}

	if _, _, ok := r.find("c1"); ok {
		t.Fatalf("find on unregistered client returned ok=true")
	}

	if _, _, err := r.register("c1", domain.Metadata{Hostname: "h", Project: "/p"}, conn); err != nil {
		t.Fatalf("register: %v", err)
	}
	row, sock, ok := r.find("c1")
	if !ok || row.ID != "c1" || sock != conn {
		t.Fatalf("find = (%+v, %v, %v), want (c1, conn, true)", row, sock, ok)
	}
}
