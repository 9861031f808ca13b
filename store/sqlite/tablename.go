package sqlite

import "strings"

// tableFromStatement extracts the table name a write statement targets by
// lexing its leading verb: INSERT INTO, UPDATE, DELETE FROM, CREATE TABLE
// [IF NOT EXISTS], DROP TABLE [IF EXISTS]. The name is returned in
// uppercase. Statements this package doesn't recognize return "" rather
// than guessing.
func tableFromStatement(stmt string) string {
	fields := strings.Fields(stmt)
	upper := make([]string, 0, len(fields))
	for _, f := range fields {
		upper = append(upper, strings.ToUpper(strings.Trim(f, "`\"[];")))
	}

	switch {
	case hasPrefix(upper, "INSERT", "INTO"):
		return stripIdent(fields, 2)
	case hasPrefix(upper, "UPDATE"):
		return stripIdent(fields, 1)
	case hasPrefix(upper, "DELETE", "FROM"):
		return stripIdent(fields, 2)
	case hasPrefix(upper, "CREATE", "TABLE", "IF", "NOT", "EXISTS"):
		return stripIdent(fields, 5)
	case hasPrefix(upper, "CREATE", "TABLE"):
		return stripIdent(fields, 2)
	case hasPrefix(upper, "DROP", "TABLE", "IF", "EXISTS"):
		return stripIdent(fields, 4)
	case hasPrefix(upper, "DROP", "TABLE"):
		return stripIdent(fields, 2)
	default:
		return ""
	}
}

func hasPrefix(upper []string, want ...string) bool {
	if len(upper) < len(want) {
		return false
	}
	for i, w := range want {
		if upper[i] != w {
			return false
		}
	}
	return true
}

func stripIdent(fields []string, at int) string {
	if at >= len(fields) {
		return ""
	}
	ident := strings.Trim(fields[at], "`\"[];")
	if paren := strings.IndexByte(ident, '('); paren >= 0 {
		ident = ident[:paren]
	}
	return strings.ToUpper(ident)
}
