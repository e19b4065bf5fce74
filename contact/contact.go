//go:generate go run go.uber.org/mock/mockgen -source=contact.go -destination=../internal/mocks/mock_store.go -package=mocks

// Package contact holds the address-book domain model, the store contract
// the bridge mutates, and the codec between contacts and vCard records.
package contact

import (
	"context"
	"errors"

	"github.com/samber/lo"
)

// Store errors
var (
	ErrNotFound       = errors.New("contact: not found")
	ErrFolderNotFound = errors.New("contact: folder not found")
	ErrDuplicateID    = errors.New("contact: identifier already in use")
)

// Email is an address sub-record. ID is assigned by the store; a new
// sub-record has an empty ID until persisted.
type Email struct {
	ID      string
	Address string
}

// Contact is one address-book entry.
type Contact struct {
	ID          string
	LastName    string
	FirstName   string
	DisplayName string
	Emails      []*Email
}

// Addresses returns the email addresses in order.
func (c *Contact) Addresses() []string {
	return lo.Map(c.Emails, func(e *Email, _ int) string {
		return e.Address
	})
}

// Clone returns a deep copy. Email sub-records are copied too, so the clone
// shares no pointers with c.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	out.Emails = lo.Map(c.Emails, func(e *Email, _ int) *Email {
		cp := *e
		return &cp
	})
	return &out
}

// Source is the address book a contact belongs to.
type Source struct {
	Name string
	Path string
}

// WalkFunc is called for every contact during Store.Walk. Returning an error
// stops the walk and Walk returns it.
type WalkFunc func(src Source, c *Contact) error

// Store is the contact storage the bridge reads and mutates.
//
// Contacts handed out by Walk and Create are owned by the caller; the store
// keeps its own copy and only changes on Update or Delete.
type Store interface {
	// Sources lists the address books, in a stable order.
	Sources(ctx context.Context) ([]Source, error)

	// Walk visits every contact of every source.
	Walk(ctx context.Context, fn WalkFunc) error

	// Create stores c in the address book at folder and returns the stored
	// contact with its assigned identifiers. Any ID on c is ignored.
	// Returns ErrFolderNotFound for an unknown folder.
	Create(ctx context.Context, folder string, c *Contact) (*Contact, error)

	// Update replaces the contact stored under id with c. c.ID may differ
	// from id when the identifier is being overwritten; ErrDuplicateID is
	// returned when another contact already holds c.ID. Emails without an ID
	// get one assigned in place.
	Update(ctx context.Context, id string, c *Contact) error

	// Delete removes the contact stored under id.
	Delete(ctx context.Context, id string) error
}
