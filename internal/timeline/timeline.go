// Package timeline keeps an ordered, deduplicated in-memory view of one
// room's messages, reconciling a bounded initial fetch with a live stream of
// row change events.
package timeline

import (
	"sort"
	"sync"

	"github.com/sohbat-app/chat-service/internal/models"
	"github.com/sohbat-app/chat-service/internal/realtime"
)

// Timeline holds the synchronized message list for a single room.
//
// Entries are ordered by creation time ascending; entries sharing a creation
// time keep their arrival order. Soft-deleted messages are never visible.
// Every mutation is applied atomically with respect to one event.
type Timeline struct {
	mu      sync.RWMutex
	entries []*models.Message
}

func New() *Timeline {
	return &Timeline{}
}

// Load seeds the timeline from an initial fetch, replacing any prior state.
// The fetch is expected ascending already; Load stable-sorts anyway and drops
// soft-deleted rows and duplicate identities.
func (t *Timeline) Load(msgs []*models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(msgs))
	entries := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.IsDeleted || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		entries = append(entries, m)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	t.entries = entries
}

// Apply folds one change event into the list.
//
// Inserts are idempotent: a row whose identity is already present (the
// optimistic local echo racing the realtime echo) is ignored. Updates and
// deletes for identities outside the loaded window are no-ops. An update
// whose new image carries the soft-delete flag removes the entry.
func (t *Timeline) Apply(event realtime.MessageEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Type {
	case realtime.EventInsert:
		t.applyInsert(event.New)
	case realtime.EventUpdate:
		t.applyUpdate(event.New)
	case realtime.EventDelete:
		row := event.Old
		if row == nil {
			row = event.New
		}
		t.applyDelete(row)
	}
}

func (t *Timeline) applyInsert(row *models.Message) {
	if row == nil || row.IsDeleted {
		return
	}
	if t.indexOf(row.ID) >= 0 {
		return
	}

	// Place after every entry with creation time <= the new row's, so that
	// equal timestamps keep arrival order.
	at := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].CreatedAt.After(row.CreatedAt)
	})

	t.entries = append(t.entries, nil)
	copy(t.entries[at+1:], t.entries[at:])
	t.entries[at] = row
}

func (t *Timeline) applyUpdate(row *models.Message) {
	if row == nil {
		return
	}
	i := t.indexOf(row.ID)
	if i < 0 {
		return
	}
	if row.IsDeleted {
		t.removeAt(i)
		return
	}
	t.entries[i] = row
}

func (t *Timeline) applyDelete(row *models.Message) {
	if row == nil {
		return
	}
	if i := t.indexOf(row.ID); i >= 0 {
		t.removeAt(i)
	}
}

func (t *Timeline) indexOf(id string) int {
	for i, m := range t.entries {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (t *Timeline) removeAt(i int) {
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
}

// Snapshot returns a copy of the current ordered list.
func (t *Timeline) Snapshot() []*models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*models.Message, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
