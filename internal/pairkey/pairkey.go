// Package pairkey derives conversation identifiers from two participant identities.
//
// A key is the two identities joined with "_" in caller order, e.g.
// "alice@x_bob@y". Identities that themselves contain "_" or "%" are
// percent-escaped before joining, which keeps the encoding reversible: no
// two distinct ordered pairs map to the same key.
package pairkey

import (
	"fmt"
	"strings"
)

// Separator joins the two escaped identities of a key.
const Separator = "_"

var (
	escaper   = strings.NewReplacer("%", "%25", "_", "%5F")
	unescaper = strings.NewReplacer("%25", "%", "%5F", "_")
)

// Join returns the key for the ordered pair (a, b).
func Join(a, b string) string {
	return escaper.Replace(a) + Separator + escaper.Replace(b)
}

// Split inverts Join.
func Split(key string) (a, b string, err error) {
	left, right, ok := strings.Cut(key, Separator)
	if !ok || strings.Contains(right, Separator) {
		return "", "", fmt.Errorf("invalid pair key %q", key)
	}
	return unescaper.Replace(left), unescaper.Replace(right), nil
}

// Candidates returns both orientations of the pair: the key a conversation
// initiated by a would be created under, and the key it would have if b
// had initiated it.
func Candidates(a, b string) (forward, reverse string) {
	return Join(a, b), Join(b, a)
}

// Ordered returns the two identities in lexicographic order. Stores index
// on this order to enforce one conversation per unordered pair.
func Ordered(a, b string) (lo, hi string) {
	if b < a {
		return b, a
	}
	return a, b
}
