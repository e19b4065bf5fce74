package contactsync

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrUnknownContact is wrapped by LookupError.
	ErrUnknownContact = errors.New("contactsync: contact not exported in this session")

	// ErrDeclined is returned when the confirmer refuses an operation.
	ErrDeclined = errors.New("contactsync: operation declined")

	// ErrSocketInUse is returned by Listen when another instance answers on
	// the socket path.
	ErrSocketInUse = errors.New("contactsync: socket already in use")

	// ErrServerClosed is returned by Serve after Close.
	ErrServerClosed = errors.New("contactsync: server closed")

	// ErrFailure is returned by Client when the bridge answers ":failure:".
	ErrFailure = errors.New("contactsync: bridge reported failure")
)

// LookupError reports an identifier absent from the session registry.
//
// Connection handling: Keep connection (answered with :failure:)
type LookupError struct {
	ID string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %q: %v", e.ID, ErrUnknownContact)
}

func (e *LookupError) Unwrap() error {
	return ErrUnknownContact
}

// ShouldCloseConnection returns false - the peer only gets :failure:
func (e *LookupError) ShouldCloseConnection() bool {
	return false
}

// StoreError wraps a rejected store operation.
//
// Connection handling: Keep connection (answered with :failure:)
type StoreError struct {
	Op  string // create, update, delete, walk
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns false - the store failed, not the stream
func (e *StoreError) ShouldCloseConnection() bool {
	return false
}
