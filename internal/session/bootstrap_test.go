package session

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/youruser/huddle/internal/localstore"
	"github.com/youruser/huddle/internal/state"
)

func openTestStore(t *testing.T) *localstore.DB {
	t.Helper()
	db, err := localstore.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBootstrapNoStore(t *testing.T) {
	s, err := Bootstrap(nil, "", nil)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	cur := s.State()
	if cur.Me.ID != "" {
		t.Errorf("Expected empty identity without a store, got %q", cur.Me.ID)
	}
	if len(cur.Channels.Items) != 0 || cur.Channels.NextToken != "" {
		t.Errorf("Expected default channels, got %+v", cur.Channels)
	}
}

func TestBootstrapFreshStore(t *testing.T) {
	db := openTestStore(t)

	s, err := Bootstrap(db, "", nil)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	id := s.State().Me.ID
	if id == "" {
		t.Fatal("Expected a minted identity")
	}

	slot, ok, err := db.Get("client:id")
	if err != nil || !ok {
		t.Fatalf("Expected identity slot written, ok=%v err=%v", ok, err)
	}
	if slot != id {
		t.Errorf("Expected slot %q to match state identity %q", slot, id)
	}
}

func TestBootstrapReusesClientID(t *testing.T) {
	db := openTestStore(t)
	if err := db.Set("client:id", "user-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s, err := Bootstrap(db, "", nil)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if got := s.State().Me.ID; got != "user-1" {
		t.Errorf("Expected identity from slot, got %q", got)
	}
}

func TestBootstrapRestoresPinnedSnapshot(t *testing.T) {
	db := openTestStore(t)

	saved := state.Default()
	saved.Me.ID = "user-1"
	saved.Channels.Items = []state.Channel{{ID: "a", Name: "alpha"}}
	saved.Channels.NextToken = "t1"
	blob, err := json.Marshal(saved)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := db.Set("state:pinned", string(blob)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s, err := Bootstrap(db, "state:pinned", nil)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	cur := s.State()
	if cur.Me.ID != "user-1" {
		t.Errorf("Expected restored identity, got %q", cur.Me.ID)
	}
	if len(cur.Channels.Items) != 1 || cur.Channels.Items[0].ID != "a" {
		t.Errorf("Expected restored channels, got %+v", cur.Channels.Items)
	}
	if cur.Channels.NextToken != "t1" {
		t.Errorf("Expected restored cursor, got %q", cur.Channels.NextToken)
	}
}

func TestBootstrapCorruptSnapshot(t *testing.T) {
	db := openTestStore(t)
	db.Set("state:pinned", "{definitely not json")
	db.Set("client:id", "user-1")

	s, err := Bootstrap(db, "state:pinned", nil)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	cur := s.State()
	if cur.Me.ID != "user-1" {
		t.Errorf("Expected fallback to slot identity, got %q", cur.Me.ID)
	}
	if len(cur.Channels.Items) != 0 {
		t.Errorf("Expected default channels after corrupt snapshot, got %+v", cur.Channels.Items)
	}
}

func TestBootstrapDerivedKeySkipsOldRuns(t *testing.T) {
	db := openTestStore(t)

	old := state.Default()
	old.Channels.Items = []state.Channel{{ID: "stale"}}
	blob, _ := json.Marshal(old)
	db.Set("state:123", string(blob))

	s, err := Bootstrap(db, "", nil)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	if s.Key() == "state:123" {
		t.Fatal("Expected a fresh derived key")
	}
	if !strings.HasPrefix(s.Key(), "state:") {
		t.Errorf("Expected derived key under the snapshot prefix, got %q", s.Key())
	}
	if len(s.State().Channels.Items) != 0 {
		t.Errorf("Expected stale snapshot ignored, got %+v", s.State().Channels.Items)
	}
}
