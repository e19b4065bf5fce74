//go:generate go run go.uber.org/mock/mockgen -source=confirm.go -destination=internal/mocks/mock_confirm.go -package=mocks

package contactsync

import (
	"context"

	"github.com/pior/contactsync/contact"
)

// Confirmer decides whether a mutation requested by the peer proceeds.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool {
	return f(ctx, message)
}

// AutoConfirm accepts every operation.
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })

// FolderResolver picks the address-book folder a new contact goes to.
// An empty result with a nil error cancels the add.
type FolderResolver interface {
	ResolveFolder(ctx context.Context, defaultPath string) (string, error)
}

// FolderFunc adapts a function to FolderResolver.
type FolderFunc func(ctx context.Context, defaultPath string) (string, error)

func (f FolderFunc) ResolveFolder(ctx context.Context, defaultPath string) (string, error) {
	return f(ctx, defaultPath)
}

// StaticFolder always resolves to the default path.
var StaticFolder FolderResolver = FolderFunc(func(_ context.Context, defaultPath string) (string, error) {
	return defaultPath, nil
})

// DefaultFolder resolves to the default path, or to the first address book
// of store when no default path is configured. NewServer uses it when
// Config.FolderResolver is nil.
func DefaultFolder(store contact.Store) FolderResolver {
	return FolderFunc(func(ctx context.Context, defaultPath string) (string, error) {
		if defaultPath != "" {
			return defaultPath, nil
		}
		sources, err := store.Sources(ctx)
		if err != nil {
			return "", err
		}
		if len(sources) == 0 {
			return "", nil
		}
		return sources[0].Path, nil
	})
}
