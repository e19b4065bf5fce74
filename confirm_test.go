package contactsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/pior/contactsync/internal/mocks"
	"github.com/pior/contactsync/store/memstore"
)

func TestDefaultFolder(t *testing.T) {
	ctx := context.Background()
	resolver := DefaultFolder(memstore.New(workBook, personalBook))

	folder, err := resolver.ResolveFolder(ctx, personalBook.Path)
	require.NoError(t, err)
	assert.Equal(t, personalBook.Path, folder)

	folder, err = resolver.ResolveFolder(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, workBook.Path, folder)
}

func TestDefaultFolderNoBooks(t *testing.T) {
	folder, err := DefaultFolder(memstore.New()).ResolveFolder(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, folder)
}

func TestDefaultFolderStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Sources(gomock.Any()).Return(nil, errors.New("locked"))

	_, err := DefaultFolder(store).ResolveFolder(context.Background(), "")
	assert.ErrorContains(t, err, "locked")
}

func TestAutoConfirm(t *testing.T) {
	assert.True(t, AutoConfirm.Confirm(context.Background(), "Delete contact?"))
}
