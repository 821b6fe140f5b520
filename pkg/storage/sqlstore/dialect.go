package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// Numbered placeholders ($1, $2, ...) instead of "?".
	Numbered bool

	// Schema is the list of statements that create the tables. Each must be
	// idempotent.
	Schema []string
}

// rebind rewrites "?" placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
