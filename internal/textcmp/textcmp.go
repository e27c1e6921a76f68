// Package textcmp orders user-facing identifiers the way people read them:
// case and accents are ignored, so "acme", "Acme" and "ÀCME" sort together.
package textcmp

import (
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collators keep internal buffers and are not safe for concurrent use.
var collators = sync.Pool{
	New: func() any {
		return collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	},
}

// Fold compares a and b ignoring case and diacritics.
func Fold(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// Compare is Fold with a byte-wise tie-break, giving a total order suitable
// for deterministic output.
func Compare(a, b string) int {
	if r := Fold(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// Less reports whether a sorts before b under Compare.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}
