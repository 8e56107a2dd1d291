package checkout

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// ID prefixes of the entities owned by the manager. IDs are K-sortable and
// URL-safe in the form "prefix_suffix".
const (
	PrefixCheckout = "chk"
	PrefixLineItem = "li"
	PrefixOrder    = "ord"
)

// newID generates an id with prefix. It panics on an invalid prefix, which
// is a programming error.
func newID(prefix string) string {
	tid, err := typeid.Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("checkout: invalid id prefix %q: %v", prefix, err))
	}
	return tid.String()
}
