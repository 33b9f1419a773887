// Package keys builds redis key names and stable entry ids for the catalog.
package keys

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "catalog"

// EntryID is the xxhash64 of the cleaned, slash-separated source path. The
// same file always maps to the same id, which is what deduplicates rows.
func EntryID(path string) string {
	norm := filepath.ToSlash(filepath.Clean(strings.TrimSpace(path)))
	return fmt.Sprintf("%016x", xxhash.Sum64String(norm))
}

// Prefix is the common prefix of every key of one catalog, for SCAN matching.
func Prefix(catalog string) string {
	return prefix + ":" + sanitizeName(strings.TrimSpace(catalog)) + ":"
}

func EntryKey(catalog, id string) string {
	return Prefix(catalog) + "entry:" + strings.TrimSpace(id)
}

func IDsKey(catalog string) string {
	return Prefix(catalog) + "ids"
}

func SchemaKey(catalog string) string {
	return Prefix(catalog) + "schema"
}

func CellKey(catalog string, res int, cell string) string {
	return fmt.Sprintf("%scell:%d:%s", Prefix(catalog), res, sanitizeName(cell))
}

func sanitizeName(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// ':' separates key segments, so it is replaced too
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
