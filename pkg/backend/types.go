// pkg/backend/types.go
package backend

import "strings"

// Backend column-type classification. The three supported warehouse
// dialects spell their types differently (DateTime vs TIMESTAMP_NTZ vs
// timestamp without time zone) but all of them are recognizable from the
// type token alone.

// IsTemporalType reports whether a backend column type denotes a date or
// timestamp type. Wrappers like Nullable(DateTime) are seen through.
func IsTemporalType(colType string) bool {
	t := strings.ToLower(unwrapNullable(colType))
	return strings.Contains(t, "date") || strings.Contains(t, "timestamp")
}

// IsStringType reports whether a backend column type denotes a character
// type. Plain string columns in the warehouse may reject nulls, so the
// adapter substitutes empty strings for them.
func IsStringType(colType string) bool {
	t := strings.ToLower(unwrapNullable(colType))
	return strings.Contains(t, "string") ||
		strings.Contains(t, "char") ||
		strings.Contains(t, "text")
}

// IsNullableType reports whether the type carries an explicit nullable
// wrapper or marker.
func IsNullableType(colType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(colType)), "nullable(")
}

func unwrapNullable(colType string) string {
	t := strings.TrimSpace(colType)
	lower := strings.ToLower(t)
	if strings.HasPrefix(lower, "nullable(") && strings.HasSuffix(t, ")") {
		return t[len("Nullable(") : len(t)-1]
	}
	return t
}
