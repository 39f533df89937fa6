// Package presence holds the ephemeral per-room presence state: who is
// connected and who is typing. Records live only as long as a connection
// tracks them; nothing is persisted.
package presence

import (
	"sort"
	"sync"
	"time"
)

// Record is what each client announces about itself on a room channel.
type Record struct {
	Username   string    `json:"username"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	LastActive time.Time `json:"last_active"`
	Typing     bool      `json:"typing"`
}

// Tracker keeps one presence set per room, keyed by a client-chosen key.
// Every change yields the full membership snapshot (sync semantics).
type Tracker struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Record
}

func NewTracker() *Tracker {
	return &Tracker{
		rooms: make(map[string]map[string]Record),
	}
}

// Track upserts a record under key and returns the room's full snapshot.
func (t *Tracker) Track(roomID, key string, rec Record) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.rooms[roomID]
	if room == nil {
		room = make(map[string]Record)
		t.rooms[roomID] = room
	}
	room[key] = rec

	return t.snapshotLocked(roomID)
}

// Untrack drops the record under key and returns the remaining snapshot.
// Called on disconnect and on explicit leave; absence is a no-op.
func (t *Tracker) Untrack(roomID, key string) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if room, ok := t.rooms[roomID]; ok {
		delete(room, key)
		if len(room) == 0 {
			delete(t.rooms, roomID)
		}
	}

	return t.snapshotLocked(roomID)
}

// Snapshot returns the current full membership of a room.
func (t *Tracker) Snapshot(roomID string) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked(roomID)
}

func (t *Tracker) snapshotLocked(roomID string) []Record {
	room := t.rooms[roomID]
	out := make([]Record, 0, len(room))
	for _, rec := range room {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
