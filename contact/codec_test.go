package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/contactsync/wire"
)

func record(lines ...string) string {
	out := "BEGIN:VCARD\r\nVERSION:2.1\r\n"
	for _, l := range lines {
		out += l + "\r\n"
	}
	return out + "END:VCARD\r\n"
}

func TestEncode(t *testing.T) {
	c := &Contact{
		ID:          "194022980",
		LastName:    "Doe",
		FirstName:   "John",
		DisplayName: "John Doe",
		Emails:      []*Email{{ID: "e1", Address: "john@example.com"}, {ID: "e2", Address: "jd@example.org"}},
	}

	expected := record(
		"UID:194022980",
		"N:Doe;John",
		"FN:John Doe",
		"EMAIL;TYPE=INTERNET:john@example.com",
		"EMAIL;TYPE=INTERNET:jd@example.org",
	)
	assert.Equal(t, expected, Codec{}.Encode(c))
}

func TestEncodeName(t *testing.T) {
	c := &Contact{ID: "1", DisplayName: "Nameless"}

	assert.Equal(t, record("UID:1", "FN:Nameless"), Codec{}.Encode(c))
	assert.Equal(t, record("UID:1", "N:;", "FN:Nameless"), Codec{AlwaysEncodeName: true}.Encode(c))
}

func TestDecode(t *testing.T) {
	c, err := Codec{}.Decode(record(
		"UID:77",
		"N:Doe;Jane",
		"EMAIL;TYPE=INTERNET: jane@example.com ",
		"EMAIL:plain@example.com",
		"EMAIL;INTERNET:bare@example.com",
		"EMAIL;TYPE=X400:x400@example.com",
		"EMAIL;TYPE=internet:lower@example.com",
		"EMAIL;TYPE=INTERNET:jane@example.com",
	))
	require.NoError(t, err)

	assert.Equal(t, "77", c.ID)
	assert.Equal(t, "Doe", c.LastName)
	assert.Equal(t, "Jane", c.FirstName)
	assert.Equal(t, "Jane Doe", c.DisplayName)
	assert.Equal(t, []string{"jane@example.com", "plain@example.com", "bare@example.com"}, c.Addresses())
}

func TestDecodeDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected string
	}{
		{"derived from N", []string{"N:Doe;John"}, "John Doe"},
		{"missing first", []string{"N:Doe"}, " Doe"},
		{"empty last", []string{"N:;John"}, "John "},
		{"FN overrides", []string{"N:Doe;John", "FN:Johnny"}, "Johnny"},
		{"FN alone", []string{"FN:Johnny"}, "Johnny"},
		{"none", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Codec{}.Decode(record(tt.lines...))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.DisplayName)
		})
	}
}

func TestDecodeError(t *testing.T) {
	_, err := Codec{}.Decode("not a card\n")

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.False(t, wire.ShouldCloseConnection(err))
}

func TestRoundTrip(t *testing.T) {
	c := &Contact{
		ID:          "42",
		LastName:    "O;Brien",
		FirstName:   "Pat",
		DisplayName: "Pat, O'Brien",
		Emails:      []*Email{{Address: "pat@example.com"}},
	}
	cd := Codec{}

	decoded, err := cd.Decode(cd.Encode(c))
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func existing() *Contact {
	return &Contact{
		ID:          "194022980",
		LastName:    "Doe",
		FirstName:   "John",
		DisplayName: "John Doe",
		Emails: []*Email{
			{ID: "e1", Address: "a@example.com"},
			{ID: "e2", Address: "b@example.com"},
		},
	}
}

func TestMergeUnchanged(t *testing.T) {
	c := existing()
	cd := Codec{}

	changed, err := cd.Merge(c, cd.Encode(existing()))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, existing(), c)
}

func TestMergeZeroEmailsKeepsList(t *testing.T) {
	c := existing()
	original := c.Emails

	changed, err := Codec{}.Merge(c, record("UID:194022980", "N:Doe;John"))
	require.NoError(t, err)
	assert.False(t, changed)

	require.Len(t, c.Emails, 2)
	assert.Same(t, original[0], c.Emails[0])
	assert.Same(t, original[1], c.Emails[1])
}

func TestMergeNonInternetEmailsOnly(t *testing.T) {
	c := existing()

	changed, err := Codec{}.Merge(c, record("EMAIL;TYPE=X400:x@example.com"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, c.Addresses())
}

func TestMergeReplaceKeepsIdentity(t *testing.T) {
	c := existing()
	kept := c.Emails[1]

	changed, err := Codec{}.Merge(c, record(
		"EMAIL;TYPE=INTERNET:b@example.com",
		"EMAIL;TYPE=INTERNET:c@example.com",
	))
	require.NoError(t, err)
	assert.True(t, changed)

	require.Len(t, c.Emails, 2)
	assert.Same(t, kept, c.Emails[0])
	assert.Equal(t, "e2", c.Emails[0].ID)
	assert.Equal(t, "c@example.com", c.Emails[1].Address)
	assert.Empty(t, c.Emails[1].ID)
}

func TestMergeDropOnly(t *testing.T) {
	c := existing()

	changed, err := Codec{}.Merge(c, record("EMAIL:a@example.com"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"a@example.com"}, c.Addresses())
	assert.Equal(t, "e1", c.Emails[0].ID)
}

func TestMergeDuplicatesCollapse(t *testing.T) {
	c := existing()

	changed, err := Codec{}.Merge(c, record(
		"EMAIL:a@example.com",
		"EMAIL: a@example.com",
		"EMAIL:b@example.com",
	))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, c.Addresses())
}

func TestMergeNames(t *testing.T) {
	c := existing()

	changed, err := Codec{}.Merge(c, record("N:Smith;John"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Smith", c.LastName)
	assert.Equal(t, "John", c.FirstName)
	assert.Equal(t, "John Smith", c.DisplayName)
}

func TestMergeIDOverwrite(t *testing.T) {
	tests := []struct {
		name      string
		codec     Codec
		expectID  string
		expectChg bool
	}{
		{"ignored by default", Codec{}, "194022980", false},
		{"applied when allowed", Codec{AllowIDOverwrite: true}, "555", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := existing()
			changed, err := tt.codec.Merge(c, record("UID:555"))
			require.NoError(t, err)
			assert.Equal(t, tt.expectChg, changed)
			assert.Equal(t, tt.expectID, c.ID)
		})
	}
}

func TestMergeDecodeError(t *testing.T) {
	c := existing()

	changed, err := Codec{}.Merge(c, "garbage")
	require.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, existing(), c)
}

func TestClone(t *testing.T) {
	c := existing()
	cp := c.Clone()

	assert.Equal(t, c, cp)
	assert.NotSame(t, c.Emails[0], cp.Emails[0])

	cp.Emails[0].Address = "changed@example.com"
	assert.Equal(t, "a@example.com", c.Emails[0].Address)
}
