// Package vformat reads and writes the attribute lines of vCard records.
//
// It covers what the contact codec needs: groups, parameters, multi-valued
// attributes, line folding, backslash escapes and quoted-printable values.
// Attribute semantics are left to the caller.
package vformat

import (
	"errors"
	"strings"
)

// Versions written by Card.Encode
const (
	Version21 = "2.1"
	Version30 = "3.0"
)

const (
	crlf = "\r\n"

	paramType     = "TYPE"
	paramEncoding = "ENCODING"
	encodingQP    = "QUOTED-PRINTABLE"
)

// ErrNoCard is returned when the input has no BEGIN:VCARD line.
var ErrNoCard = errors.New("vformat: no BEGIN:VCARD found")

// Param is a named attribute parameter.
type Param struct {
	Name   string
	Values []string
}

// Attribute is one logical vCard line.
type Attribute struct {
	Group  string
	Name   string
	Params []Param
	Values []string
}

// NewAttribute returns an attribute carrying values.
func NewAttribute(name string, values ...string) *Attribute {
	return &Attribute{Name: name, Values: values}
}

// Is reports whether the attribute name matches, ignoring case.
func (a *Attribute) Is(name string) bool {
	return strings.EqualFold(a.Name, name)
}

// IsSingleValued reports whether exactly one value is present.
func (a *Attribute) IsSingleValued() bool {
	return len(a.Values) == 1
}

// Value returns the first value, or "".
func (a *Attribute) Value() string {
	if len(a.Values) == 0 {
		return ""
	}
	return a.Values[0]
}

// NthValue returns the value at index i and whether it exists.
func (a *Attribute) NthValue(i int) (string, bool) {
	if i < 0 || i >= len(a.Values) {
		return "", false
	}
	return a.Values[i], true
}

// Param returns the values of every parameter called name, ignoring case.
// The result is nil when the parameter is absent.
func (a *Attribute) Param(name string) []string {
	var values []string
	found := false
	for _, p := range a.Params {
		if strings.EqualFold(p.Name, name) {
			found = true
			values = append(values, p.Values...)
		}
	}
	if found && values == nil {
		values = []string{}
	}
	return values
}

// HasParam reports whether a parameter called name is present.
func (a *Attribute) HasParam(name string) bool {
	for _, p := range a.Params {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// AddParam appends a parameter.
func (a *Attribute) AddParam(name string, values ...string) *Attribute {
	a.Params = append(a.Params, Param{Name: name, Values: values})
	return a
}

// Card is a parsed vCard.
type Card struct {
	Version    string
	Attributes []*Attribute
}

// Get returns every attribute called name, in record order.
func (c *Card) Get(name string) []*Attribute {
	var out []*Attribute
	for _, a := range c.Attributes {
		if a.Is(name) {
			out = append(out, a)
		}
	}
	return out
}

// First returns the first attribute called name, or nil.
func (c *Card) First(name string) *Attribute {
	for _, a := range c.Attributes {
		if a.Is(name) {
			return a
		}
	}
	return nil
}

// Add appends attributes.
func (c *Card) Add(attrs ...*Attribute) {
	c.Attributes = append(c.Attributes, attrs...)
}

// Encode serializes the card with CRLF line endings. An empty version
// defaults to 2.1.
func (c *Card) Encode(version string) string {
	if version == "" {
		version = Version21
	}

	var b strings.Builder
	b.WriteString("BEGIN:VCARD")
	b.WriteString(crlf)
	b.WriteString("VERSION:")
	b.WriteString(version)
	b.WriteString(crlf)
	for _, a := range c.Attributes {
		writeAttribute(&b, a)
	}
	b.WriteString("END:VCARD")
	b.WriteString(crlf)
	return b.String()
}

func (c *Card) String() string {
	return c.Encode(c.Version)
}
