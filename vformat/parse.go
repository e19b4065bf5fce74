package vformat

import (
	"io"
	"mime/quotedprintable"
	"strings"
)

// Parse reads the first vCard in text.
//
// Parsing is lenient: lines before BEGIN:VCARD and lines without a ':' are
// skipped, a missing END:VCARD is tolerated. Parameters without '=' are
// vCard 2.1 shorthand for TYPE values ("EMAIL;INTERNET:...").
func Parse(text string) (*Card, error) {
	var (
		card    *Card
		started bool
	)

	for _, line := range unfold(text) {
		attr, ok := parseLine(line)
		if !ok {
			continue
		}

		switch {
		case attr.Is("BEGIN"):
			if !started && strings.EqualFold(attr.Value(), "VCARD") {
				started = true
				card = &Card{}
			}
			continue
		case !started:
			continue
		case attr.Is("END"):
			if strings.EqualFold(attr.Value(), "VCARD") {
				return card, nil
			}
			continue
		case attr.Is("VERSION"):
			card.Version = attr.Value()
			continue
		}

		card.Attributes = append(card.Attributes, attr)
	}

	if card == nil {
		return nil, ErrNoCard
	}
	return card, nil
}

// unfold splits text into logical lines. A line starting with a space or tab
// continues the previous one; a quoted-printable line ending in '=' continues
// onto the next line.
func unfold(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		lines   []string
		current string
		softQP  bool
	)
	for _, l := range strings.Split(text, "\n") {
		switch {
		case softQP:
			current = strings.TrimSuffix(current, "=") + l
		case len(l) > 0 && (l[0] == ' ' || l[0] == '\t') && current != "":
			current += l[1:]
		default:
			if current != "" {
				lines = append(lines, current)
			}
			current = l
		}

		softQP = strings.HasSuffix(l, "=") && isQuotedPrintable(current)
	}
	if current != "" {
		lines = append(lines, current)
	}

	return lines
}

func isQuotedPrintable(line string) bool {
	head, _, ok := splitHeader(line)
	return ok && strings.Contains(strings.ToUpper(head), encodingQP)
}

// splitHeader cuts a line at the first ':' outside double quotes.
func splitHeader(line string) (head, value string, ok bool) {
	quoted := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			quoted = !quoted
		case ':':
			if !quoted {
				return line[:i], line[i+1:], true
			}
		}
	}
	return "", "", false
}

func parseLine(line string) (*Attribute, bool) {
	head, value, ok := splitHeader(line)
	if !ok {
		return nil, false
	}

	parts := splitUnquoted(head, ';')
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return nil, false
	}

	attr := &Attribute{}
	if group, n, found := strings.Cut(name, "."); found {
		attr.Group = group
		name = n
	}
	attr.Name = name

	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		pname, pvalue, hasValue := strings.Cut(p, "=")
		if !hasValue {
			attr.Params = append(attr.Params, Param{Name: paramType, Values: []string{p}})
			continue
		}
		var values []string
		for _, v := range splitUnquoted(pvalue, ',') {
			values = append(values, strings.Trim(v, `"`))
		}
		attr.Params = append(attr.Params, Param{Name: pname, Values: values})
	}

	if isQP(attr) {
		value = decodeQuotedPrintable(value)
	}
	attr.Values = splitValues(value)

	return attr, true
}

func isQP(attr *Attribute) bool {
	for _, v := range attr.Param(paramEncoding) {
		if strings.EqualFold(v, encodingQP) {
			return true
		}
	}
	// 2.1 bare "QUOTED-PRINTABLE" lands in TYPE
	for _, v := range attr.Param(paramType) {
		if strings.EqualFold(v, encodingQP) {
			return true
		}
	}
	return false
}

func splitUnquoted(s string, sep byte) []string {
	var (
		parts  []string
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// splitValues splits on unescaped ';' and resolves escapes.
func splitValues(value string) []string {
	var (
		values  []string
		current strings.Builder
	)
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == '\\' && i+1 < len(value):
			i++
			switch value[i] {
			case 'n', 'N':
				current.WriteByte('\n')
			case ';', ',', '\\':
				current.WriteByte(value[i])
			default:
				current.WriteByte('\\')
				current.WriteByte(value[i])
			}
		case c == ';':
			values = append(values, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	return append(values, current.String())
}

// decodeQuotedPrintable decodes a value whose soft line breaks were already
// joined by unfold. Malformed input is kept as is.
func decodeQuotedPrintable(s string) string {
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(s)))
	if err != nil {
		return s
	}
	return string(decoded)
}
