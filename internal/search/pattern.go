package search

import "strings"

// likeEscaper neutralizes ILIKE metacharacters so query text matches them
// literally inside a generated pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CompileFuzzyPattern builds the inter-character wildcard pattern for a
// fuzzy scan: a wildcard before, between, and after every character of the
// query, so "AB C" matches any name containing 'A', 'B', ' ', 'C' in that
// relative order with arbitrary gaps. Pure string-to-string; the storage
// call happens elsewhere.
func CompileFuzzyPattern(query string) string {
	var b strings.Builder
	b.WriteByte('%')
	for _, r := range query {
		b.WriteString(likeEscaper.Replace(string(r)))
		b.WriteByte('%')
	}
	return b.String()
}
