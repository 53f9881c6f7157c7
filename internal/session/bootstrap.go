package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/youruser/huddle/internal/localstore"
	"github.com/youruser/huddle/internal/state"
)

const (
	// snapshotPrefix namespaces state snapshots in the store.
	snapshotPrefix = "state:"

	// clientIDKey is the stable slot holding the local user identity. It
	// survives across runs even when the snapshot key does not.
	clientIDKey = "client:id"
)

// Bootstrap builds a session and its initial state.
//
// With no store (db nil) the session starts from the default state and
// never persists. Otherwise the snapshot under the session's key is
// restored when it parses; a missing or corrupt snapshot falls back to the
// default state carrying the identity from the client slot, minting a
// fresh one when that slot is empty. The resolved identity is written back
// to the slot either way.
//
// snapshotKey pins a stable key; when empty the key is derived from the
// session start time, so snapshots from a prior run are not picked up.
func Bootstrap(db *localstore.DB, snapshotKey string, log slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Disabled
	}

	key := snapshotKey
	if key == "" {
		key = snapshotPrefix + strconv.FormatInt(time.Now().UnixMilli(), 10)
	}

	s := &Session{db: db, key: key, log: log}

	if db == nil {
		log.Infof("No store; starting from default state")
		s.cur = state.Default()
		return s, nil
	}

	blob, ok, err := db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if ok {
		var restored state.State
		err := json.Unmarshal([]byte(blob), &restored)
		if err == nil {
			log.Infof("Restored state from %s (%d channels)", key,
				len(restored.Channels.Items))
			s.cur = restored
			return s, nil
		}
		log.Warnf("Snapshot under %s does not parse, starting fresh: %v", key, err)
	}

	cur := state.Default()
	id, ok, err := db.Get(clientIDKey)
	if err != nil {
		return nil, fmt.Errorf("read client id: %w", err)
	}
	if !ok || id == "" {
		id = uuid.NewString()
		log.Infof("Minted client id %s", id)
	}
	cur.Me.ID = id
	if err := db.Set(clientIDKey, id); err != nil {
		return nil, fmt.Errorf("store client id: %w", err)
	}

	s.cur = cur
	return s, nil
}
