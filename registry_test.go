package contactsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/contactsync/contact"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	src := contact.Source{Name: "Work", Path: "#mh/work"}
	c := &contact.Contact{ID: "1"}

	r.Put("1", c, src, "BEGIN:VCARD\r\nEND:VCARD\r\n")
	assert.Equal(t, 1, r.Len())

	e, ok := r.Get("1")
	require.True(t, ok)
	assert.Same(t, c, e.Contact)
	assert.Equal(t, src, e.Source)
	assert.Equal(t, RecordDigest("BEGIN:VCARD\nEND:VCARD\n"), e.Digest)
	assert.False(t, e.ExportedAt.IsZero())

	_, ok = r.Get("2")
	assert.False(t, ok)

	r.Remove("1")
	assert.Zero(t, r.Len())
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry()
	first := &contact.Contact{ID: "1"}
	second := &contact.Contact{ID: "1"}

	r.Put("1", first, contact.Source{}, "a")
	r.Put("1", second, contact.Source{}, "b")

	e, ok := r.Get("1")
	require.True(t, ok)
	assert.Same(t, second, e.Contact)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"1", "2", "3"} {
		r.Put(id, &contact.Contact{ID: id}, contact.Source{}, id)
	}

	r.Clear()
	assert.Zero(t, r.Len())
	_, ok := r.Get("2")
	assert.False(t, ok)
}

func TestRecordDigest(t *testing.T) {
	assert.Equal(t, RecordDigest("a\r\nb\r\n"), RecordDigest("a\nb\n"))
	assert.NotEqual(t, RecordDigest("a\nb\n"), RecordDigest("a\nc\n"))
}
