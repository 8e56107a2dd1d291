// Package catalog implements product search over a store's catalog.
package catalog

import (
	"strings"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
)

// Results is the payload returned to callers for a search.
type Results struct {
	Query    string         `json:"query"`
	StoreID  string         `json:"store_id"`
	Products []core.Product `json:"results"`
}

// Search returns the products of store whose title matches query, in
// catalog order. Matching is case-insensitive: a product matches when the
// whole query is a substring of its title or when every query token is. An
// empty query matches every product. No match is an empty slice, not an error.
func Search(store *registry.Store, query string) ([]core.Product, error) {
	if store == nil {
		return nil, core.Internalf("search on nil store")
	}

	q := normalize(query)
	tokens := strings.Fields(q)

	out := make([]core.Product, 0)
	for i, p := range store.Catalog() {
		if p.ID == "" {
			return nil, core.Internalf("store %q: product %d has no id", store.ID, i)
		}
		if matches(normalize(p.Title), q, tokens) {
			out = append(out, p)
		}
	}
	return out, nil
}

// SearchResults wraps Search in the caller-facing payload.
func SearchResults(store *registry.Store, query string) (*Results, error) {
	products, err := Search(store, query)
	if err != nil {
		return nil, err
	}
	return &Results{Query: query, StoreID: store.ID, Products: products}, nil
}

func matches(title, query string, tokens []string) bool {
	if query == "" || strings.Contains(title, query) {
		return true
	}
	for _, tok := range tokens {
		if !strings.Contains(title, tok) {
			return false
		}
	}
	return len(tokens) > 0
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
