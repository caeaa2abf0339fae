// Package media owns generated media buffers. Every entry stays alive until
// it is released, replaced or reset.
package media

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown or released id.
var ErrNotFound = errors.New("media not found")

// Item is one stored resource.
type Item struct {
	ID       string
	MIMEType string
	Filename string
	Data     []byte
	Created  time.Time
}

// Store holds media in memory with an optional total size limit. When the
// limit is exceeded the oldest items are released first.
type Store struct {
	mu       sync.Mutex
	items    map[string]*Item
	order    []string
	size     int64
	maxBytes int64
	now      func() time.Time
}

// NewStore returns a store capped at maxBytes; 0 means unbounded.
func NewStore(maxBytes int64) *Store {
	return &Store{items: make(map[string]*Item), maxBytes: maxBytes, now: time.Now}
}

// Put stores data and returns its new id.
func (s *Store) Put(mimeType, filename string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(mimeType, filename, data)
}

func (s *Store) put(mimeType, filename string, data []byte) string {
	it := &Item{
		ID:       uuid.NewString(),
		MIMEType: mimeType,
		Filename: filename,
		Data:     data,
		Created:  s.now(),
	}
	s.items[it.ID] = it
	s.order = append(s.order, it.ID)
	s.size += int64(len(data))
	s.evict(it.ID)
	return it.ID
}

// Replace releases old, if present, and stores data under a new id.
func (s *Store) Replace(old, mimeType, filename string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(old)
	return s.put(mimeType, filename, data)
}

// Get returns the item with id.
func (s *Store) Get(id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return *it, nil
}

// Release frees id. It reports whether the id was present.
func (s *Store) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.release(id)
}

// ReleaseAll frees every id in ids.
func (s *Store) ReleaseAll(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.release(id)
	}
}

// Reset frees everything.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.items)
	s.order = nil
	s.size = 0
}

// Len and Size report the number of items and their total bytes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *Store) release(id string) bool {
	it, ok := s.items[id]
	if !ok {
		return false
	}
	delete(s.items, id)
	s.size -= int64(len(it.Data))
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// evict drops the oldest items until the store fits, never dropping keep.
func (s *Store) evict(keep string) {
	if s.maxBytes <= 0 {
		return
	}
	for s.size > s.maxBytes && len(s.order) > 1 {
		oldest := s.order[0]
		if oldest == keep {
			return
		}
		s.release(oldest)
	}
}

// Slot holds at most one live item. Setting a new value releases the
// previous one on the same call.
type Slot struct {
	store *Store
	mu    sync.Mutex
	id    string
}

// NewSlot binds a slot to store.
func NewSlot(store *Store) *Slot {
	return &Slot{store: store}
}

// Set stores data, releasing the previous item, and returns the new id.
func (sl *Slot) Set(mimeType, filename string, data []byte) string {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.id = sl.store.Replace(sl.id, mimeType, filename, data)
	return sl.id
}

// ID returns the current id or "".
func (sl *Slot) ID() string {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.id
}

// Clear releases the current item.
func (sl *Slot) Clear() {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.id != "" {
		sl.store.Release(sl.id)
		sl.id = ""
	}
}

// Group holds a set of items that are replaced together, such as the parts
// of a chunked synthesis.
type Group struct {
	store *Store
	mu    sync.Mutex
	ids   []string
}

// NewGroup binds a group to store.
func NewGroup(store *Store) *Group {
	return &Group{store: store}
}

// Add stores data as a member of the group.
func (g *Group) Add(mimeType, filename string, data []byte) string {
	id := g.store.Put(mimeType, filename, data)
	g.mu.Lock()
	g.ids = append(g.ids, id)
	g.mu.Unlock()
	return id
}

// IDs returns the member ids in insertion order.
func (g *Group) IDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.ids...)
}

// Clear releases every member.
func (g *Group) Clear() {
	g.mu.Lock()
	ids := g.ids
	g.ids = nil
	g.mu.Unlock()
	g.store.ReleaseAll(ids...)
}
