// Package memstore keeps address books in memory.
//
// Each book carries a dirty flag set by every mutation and cleared by Flush,
// which hands modified books to a persistence callback.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/pior/contactsync/contact"
)

type book struct {
	source   contact.Source
	contacts []*contact.Contact
	dirty    bool
}

// Store is an in-memory contact.Store. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	books []*book
	newID func() string
}

var _ contact.Store = (*Store)(nil)

// New returns a store with one empty book per source.
func New(sources ...contact.Source) *Store {
	s := &Store{newID: uuid.NewString}
	for _, src := range sources {
		s.books = append(s.books, &book{source: src})
	}
	return s
}

// Seed adds contacts to the book at path as-is, keeping their IDs. Used to
// load fixtures; the book is not marked dirty.
func (s *Store) Seed(path string, contacts ...*contact.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bookByPath(path)
	if b == nil {
		return fmt.Errorf("seed %q: %w", path, contact.ErrFolderNotFound)
	}
	for _, c := range contacts {
		b.contacts = append(b.contacts, c.Clone())
	}
	return nil
}

func (s *Store) Sources(ctx context.Context) ([]contact.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.Map(s.books, func(b *book, _ int) contact.Source {
		return b.source
	}), nil
}

func (s *Store) Walk(ctx context.Context, fn contact.WalkFunc) error {
	type item struct {
		src contact.Source
		c   *contact.Contact
	}

	// Snapshot first so fn may call back into the store.
	s.mu.Lock()
	var items []item
	for _, b := range s.books {
		for _, c := range b.contacts {
			items = append(items, item{src: b.source, c: c.Clone()})
		}
	}
	s.mu.Unlock()

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(it.src, it.c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Create(ctx context.Context, folder string, c *contact.Contact) (*contact.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bookByPath(folder)
	if b == nil {
		return nil, fmt.Errorf("create in %q: %w", folder, contact.ErrFolderNotFound)
	}

	stored := c.Clone()
	stored.ID = s.newID()
	s.assignEmailIDs(stored)

	b.contacts = append(b.contacts, stored)
	b.dirty = true

	return stored.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id string, c *contact.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, idx := s.find(id)
	if b == nil {
		return fmt.Errorf("update %q: %w", id, contact.ErrNotFound)
	}
	if c.ID != id {
		if other, _ := s.find(c.ID); other != nil {
			return fmt.Errorf("update %q to %q: %w", id, c.ID, contact.ErrDuplicateID)
		}
	}

	s.assignEmailIDs(c)
	b.contacts[idx] = c.Clone()
	b.dirty = true
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, idx := s.find(id)
	if b == nil {
		return fmt.Errorf("delete %q: %w", id, contact.ErrNotFound)
	}

	b.contacts = append(b.contacts[:idx], b.contacts[idx+1:]...)
	b.dirty = true
	return nil
}

// Dirty reports whether the book at path changed since the last Flush.
func (s *Store) Dirty(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bookByPath(path)
	return b != nil && b.dirty
}

// FlushFunc persists one modified book.
type FlushFunc func(src contact.Source, contacts []*contact.Contact) error

// Flush calls fn for every dirty book and clears the flag of each book fn
// accepted. It stops at the first error.
func (s *Store) Flush(fn FlushFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.books {
		if !b.dirty {
			continue
		}
		snapshot := lo.Map(b.contacts, func(c *contact.Contact, _ int) *contact.Contact {
			return c.Clone()
		})
		if err := fn(b.source, snapshot); err != nil {
			return fmt.Errorf("flush %q: %w", b.source.Path, err)
		}
		b.dirty = false
	}
	return nil
}

// Len returns the number of contacts across all books.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.SumBy(s.books, func(b *book) int {
		return len(b.contacts)
	})
}

func (s *Store) bookByPath(path string) *book {
	b, ok := lo.Find(s.books, func(b *book) bool {
		return b.source.Path == path
	})
	if !ok {
		return nil
	}
	return b
}

func (s *Store) find(id string) (*book, int) {
	for _, b := range s.books {
		for i, c := range b.contacts {
			if c.ID == id {
				return b, i
			}
		}
	}
	return nil, -1
}

func (s *Store) assignEmailIDs(c *contact.Contact) {
	for _, e := range c.Emails {
		if e.ID == "" {
			e.ID = s.newID()
		}
	}
}
