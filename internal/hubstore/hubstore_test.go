package hubstore_test

import (
	"testing"
	"time"

	"github.com/filipexyz/orchestrator/internal/domain"
	"github.com/filipexyz/orchestrator/internal/hubstore"
)

func TestStorePutLoadDelete(t *testing.T) {
	dir := t.TempDir()

	store, err := hubstore.Open(dir, "user-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	c := domain.Client{
		ID:          "c1",
		UserID:      "user-1",
		Metadata:    domain.Metadata{Hostname: "h", Project: "/p"},
		Status:      domain.StatusIdle,
		ConnectedAt: time.Now().UTC(),
		LastSeen:    time.Now().UTC(),
	}

	if err := store.Put(c); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rows, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "c1" {
		t.Fatalf("LoadAll = %+v, want [c1]", rows)
	}

	if err := store.Delete("c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	rows, err = store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll after delete: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("LoadAll after delete = %+v, want empty", rows)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := hubstore.Open(dir, "user-2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c := domain.Client{ID: "c1", UserID: "user-2", Status: domain.StatusIdle}
	if err := store.Put(c); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := hubstore.Open(dir, "user-2")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rows, err := reopened.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "c1" {
		t.Fatalf("LoadAll after reopen = %+v, want [c1]", rows)
	}
}
