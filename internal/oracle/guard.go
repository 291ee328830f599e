package oracle

import "strings"

// forbiddenKeywords are statement-leading keywords that disqualify a
// generated query. Generated text is untrusted; anything that could mutate
// warehouse state is dropped before it gets near a connection.
var forbiddenKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
	"MERGE":    true,
}

// isReadOnly checks every ;-separated statement in the query. A statement
// whose leading keyword is on the deny list fails the whole query.
func isReadOnly(query string) bool {
	for _, stmt := range strings.Split(query, ";") {
		keyword := leadingKeyword(stmt)
		if keyword == "" {
			continue
		}
		if forbiddenKeywords[keyword] {
			return false
		}
	}
	return true
}

// leadingKeyword returns the first SQL keyword of a statement, uppercased,
// with line and block comments skipped.
func leadingKeyword(stmt string) string {
	s := strings.TrimSpace(stmt)

	for {
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.Index(s, "\n")
			if idx == -1 {
				return ""
			}
			s = strings.TrimSpace(s[idx+1:])
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s, "*/")
			if idx == -1 {
				return ""
			}
			s = strings.TrimSpace(s[idx+2:])
		default:
			s = strings.TrimLeft(s, "(")
			fields := strings.Fields(s)
			if len(fields) == 0 {
				return ""
			}
			return strings.ToUpper(strings.TrimLeft(fields[0], "("))
		}
	}
}
