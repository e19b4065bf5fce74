package vformat

import "strings"

var valueEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

func writeAttribute(b *strings.Builder, a *Attribute) {
	if a.Group != "" {
		b.WriteString(a.Group)
		b.WriteByte('.')
	}
	b.WriteString(a.Name)

	for _, p := range a.Params {
		b.WriteByte(';')
		b.WriteString(p.Name)
		if len(p.Values) == 0 {
			continue
		}
		b.WriteByte('=')
		for i, v := range p.Values {
			if i > 0 {
				b.WriteByte(',')
			}
			if strings.ContainsAny(v, ":;,") {
				b.WriteByte('"')
				b.WriteString(v)
				b.WriteByte('"')
			} else {
				b.WriteString(v)
			}
		}
	}

	b.WriteByte(':')
	for i, v := range a.Values {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(valueEscaper.Replace(v))
	}
	b.WriteString(crlf)
}
