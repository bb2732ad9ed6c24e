package rules

import "strings"

// Expand substitutes backreference tokens in template with capture group
// text. `\N` (N decimal, possibly multi-digit) is replaced with groups[N],
// where groups[0] is the full match. Indexes beyond the available groups
// expand to the empty string. `\\` yields a literal backslash; a trailing
// or non-numeric escape is kept as-is.
func Expand(template string, groups []string) string {
	if !strings.ContainsRune(template, '\\') {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '\\' || i == len(template)-1 {
			b.WriteByte(c)
			continue
		}

		next := template[i+1]
		switch {
		case next == '\\':
			b.WriteByte('\\')
			i++
		case next >= '0' && next <= '9':
			j := i + 1
			n := 0
			for j < len(template) && template[j] >= '0' && template[j] <= '9' {
				n = n*10 + int(template[j]-'0')
				j++
			}
			if n < len(groups) {
				b.WriteString(groups[n])
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
