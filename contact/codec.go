package contact

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/pior/contactsync/vformat"
)

// vCard attribute names handled by the codec
const (
	AttrUID   = "UID"
	AttrName  = "N"
	AttrFN    = "FN"
	AttrEmail = "EMAIL"

	paramType    = "TYPE"
	typeInternet = "INTERNET"
)

// DecodeError reports a record that could not be parsed.
// The protocol state is intact: the record was fully read.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode contact: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns false - the record was consumed
func (e *DecodeError) ShouldCloseConnection() bool {
	return false
}

// Codec converts contacts to and from vCard records.
type Codec struct {
	// AllowIDOverwrite applies an incoming UID on Merge. When false the UID
	// of a modify record is ignored.
	AllowIDOverwrite bool

	// AlwaysEncodeName emits N even when both name parts are empty.
	AlwaysEncodeName bool

	// Version written by Encode. Defaults to vCard 2.1.
	Version string
}

// Encode renders c as a vCard record.
//
// Attribute order: UID, N, FN, then one EMAIL;TYPE=INTERNET per address.
func (cd Codec) Encode(c *Contact) string {
	card := &vformat.Card{}
	card.Add(vformat.NewAttribute(AttrUID, c.ID))

	if cd.AlwaysEncodeName || c.LastName != "" || c.FirstName != "" {
		card.Add(vformat.NewAttribute(AttrName, c.LastName, c.FirstName))
	}
	if c.DisplayName != "" {
		card.Add(vformat.NewAttribute(AttrFN, c.DisplayName))
	}
	for _, e := range c.Emails {
		card.Add(vformat.NewAttribute(AttrEmail, e.Address).AddParam(paramType, typeInternet))
	}

	return card.Encode(cd.Version)
}

// Decode parses raw into a new contact. The UID, when present, is kept as
// the contact ID.
func (cd Codec) Decode(raw string) (*Contact, error) {
	card, err := vformat.Parse(raw)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	c := &Contact{}
	if uid := card.First(AttrUID); uid != nil {
		c.ID = uid.Value()
	}
	applyNames(c, card)
	c.Emails = lo.Map(internetAddresses(card), func(addr string, _ int) *Email {
		return &Email{Address: addr}
	})

	return c, nil
}

// Merge applies raw onto dst and reports whether dst changed.
//
// Email sub-records whose address reappears are kept as the same *Email.
// A record without email addresses leaves dst.Emails untouched; one with at
// least one address replaces the list, dropping unmatched entries.
func (cd Codec) Merge(dst *Contact, raw string) (bool, error) {
	card, err := vformat.Parse(raw)
	if err != nil {
		return false, &DecodeError{Err: err}
	}

	before := *dst
	changed := false

	if cd.AllowIDOverwrite {
		if uid := card.First(AttrUID); uid != nil && uid.Value() != "" {
			dst.ID = uid.Value()
		}
	}
	applyNames(dst, card)

	if dst.ID != before.ID ||
		dst.LastName != before.LastName ||
		dst.FirstName != before.FirstName ||
		dst.DisplayName != before.DisplayName {
		changed = true
	}

	if mergeEmails(dst, internetAddresses(card)) {
		changed = true
	}

	return changed, nil
}

// mergeEmails rebuilds dst.Emails from incoming, reusing pooled sub-records.
func mergeEmails(dst *Contact, incoming []string) bool {
	pool := dst.Emails
	dst.Emails = nil

	if len(incoming) == 0 {
		dst.Emails = pool
		return false
	}

	changed := false
	for _, addr := range incoming {
		idx := lo.IndexOf(lo.Map(pool, func(e *Email, _ int) string {
			return strings.TrimSpace(e.Address)
		}), addr)
		if idx >= 0 {
			dst.Emails = append(dst.Emails, pool[idx])
			pool = append(pool[:idx:idx], pool[idx+1:]...)
			continue
		}
		dst.Emails = append(dst.Emails, &Email{Address: addr})
		changed = true
	}

	// leftovers are dropped
	if len(pool) > 0 {
		changed = true
	}

	return changed
}

// applyNames handles N and FN. A present N part overwrites the field; the
// display name is derived from the N parts as "first last", absent parts
// being empty. FN, when present, wins over the derived display name.
func applyNames(c *Contact, card *vformat.Card) {
	for _, attr := range card.Attributes {
		switch {
		case attr.Is(AttrName):
			last, hasLast := attr.NthValue(0)
			first, hasFirst := attr.NthValue(1)
			if hasLast {
				c.LastName = last
			}
			if hasFirst {
				c.FirstName = first
			}
			if hasLast || hasFirst {
				c.DisplayName = first + " " + last
			}
		case attr.Is(AttrFN):
			c.DisplayName = attr.Value()
		}
	}
}

// internetAddresses returns the trimmed, de-duplicated internet email
// addresses of card in record order.
func internetAddresses(card *vformat.Card) []string {
	var out []string
	for _, attr := range card.Get(AttrEmail) {
		if !isInternet(attr) {
			continue
		}
		addr := strings.TrimSpace(attr.Value())
		if addr == "" {
			continue
		}
		out = append(out, addr)
	}
	return lo.Uniq(out)
}

// isInternet reports whether an EMAIL attribute is internet-typed: either it
// has no TYPE parameter or one of its TYPE values is exactly "INTERNET".
func isInternet(attr *vformat.Attribute) bool {
	if !attr.HasParam(paramType) {
		return true
	}
	return lo.Contains(attr.Param(paramType), typeInternet)
}
