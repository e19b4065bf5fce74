package contactsync

import (
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/pior/contactsync/contact"
	"github.com/pior/contactsync/internal/coarsetime"
)

// Entry is what the registry remembers about an exported contact.
type Entry struct {
	Contact    *contact.Contact
	Source     contact.Source
	Digest     uint64 // of the record the peer holds
	ExportedAt time.Time
}

// Registry maps identifiers exported in the current session to their
// contacts. It lives as long as the session; nothing is persisted.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Put records c under id. An existing entry is replaced.
func (r *Registry) Put(id string, c *contact.Contact, src contact.Source, record string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[id] = &Entry{
		Contact:    c,
		Source:     src,
		Digest:     RecordDigest(record),
		ExportedAt: coarsetime.Now(),
	}
}

// Get returns the entry for id.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return e, ok
}

// Remove deletes the entry for id, if any.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, id)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Clear drops every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.entries)
}

// RecordDigest hashes a record with line endings normalized, so a record
// sent with CRLF and read back without CR hashes the same.
func RecordDigest(record string) uint64 {
	return xxh3.HashString(strings.ReplaceAll(record, "\r", ""))
}
