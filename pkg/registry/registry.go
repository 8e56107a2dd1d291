// Package registry holds the fixed set of stores the agent can shop at.
package registry

import (
	"fmt"
	"sort"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// Store is a backend merchant with its advertised capabilities and catalog.
// Stores handed out by a Registry are copies; capabilities and catalog are
// only readable through methods.
type Store struct {
	ID       string
	Name     string
	Currency string

	capabilities map[core.Capability]bool
	catalog      []core.Product
}

// NewStore creates a store. Currency defaults to core.DefaultCurrency.
func NewStore(id, name string, catalog []core.Product, caps ...core.Capability) *Store {
	s := &Store{
		ID:           id,
		Name:         name,
		Currency:     core.DefaultCurrency,
		capabilities: make(map[core.Capability]bool, len(caps)),
		catalog:      append([]core.Product(nil), catalog...),
	}
	for _, c := range caps {
		s.capabilities[c] = true
	}
	return s
}

// Supports reports whether the store advertises capability c.
func (s *Store) Supports(c core.Capability) bool {
	return s != nil && s.capabilities[c]
}

// Catalog returns a copy of the store's products in catalog order.
func (s *Store) Catalog() []core.Product {
	return append([]core.Product(nil), s.catalog...)
}

// Product looks up a catalog entry by id.
func (s *Store) Product(id string) (core.Product, bool) {
	for _, p := range s.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return core.Product{}, false
}

// StoreInfo is the public listing shape of a store.
type StoreInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	ProductCount int      `json:"product_count"`
}

// Info returns the listing shape with capabilities in sorted order.
func (s *Store) Info() StoreInfo {
	caps := make([]string, 0, len(s.capabilities))
	for c, ok := range s.capabilities {
		if ok {
			caps = append(caps, string(c))
		}
	}
	sort.Strings(caps)
	return StoreInfo{
		ID:           s.ID,
		Name:         s.Name,
		Capabilities: caps,
		ProductCount: len(s.catalog),
	}
}

// Registry is an immutable, insertion-ordered set of stores. It is built once
// at startup and passed to every component that needs it.
type Registry struct {
	stores []*Store
	byID   map[string]*Store
}

// New builds a registry. Store ids must be unique and non-empty, and product
// ids must be unique and non-empty within each catalog.
func New(stores ...*Store) (*Registry, error) {
	r := &Registry{
		stores: make([]*Store, 0, len(stores)),
		byID:   make(map[string]*Store, len(stores)),
	}
	for _, s := range stores {
		if s == nil || s.ID == "" {
			return nil, core.InvalidArgumentf("store id is required")
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, core.InvalidArgumentf("duplicate store id %q", s.ID)
		}
		if err := checkCatalog(s); err != nil {
			return nil, err
		}
		own := s.deepCopy()
		if own.Currency == "" {
			own.Currency = core.DefaultCurrency
		}
		r.stores = append(r.stores, own)
		r.byID[own.ID] = own
	}
	return r, nil
}

// deepCopy detaches the store from the caller's capability map and catalog.
func (s *Store) deepCopy() *Store {
	c := *s
	c.capabilities = make(map[core.Capability]bool, len(s.capabilities))
	for k, v := range s.capabilities {
		c.capabilities[k] = v
	}
	c.catalog = append([]core.Product(nil), s.catalog...)
	return &c
}

// view returns a shallow copy. Its capabilities and catalog are shared with
// the registry but not reachable for writing.
func (s *Store) view() *Store {
	c := *s
	return &c
}

func checkCatalog(s *Store) error {
	seen := make(map[string]bool, len(s.catalog))
	for i, p := range s.catalog {
		if p.ID == "" {
			return core.Internalf("store %q: product %d has no id", s.ID, i)
		}
		if seen[p.ID] {
			return core.Internalf("store %q: duplicate product id %q", s.ID, p.ID)
		}
		if p.Price < 0 {
			return core.Internalf("store %q: product %q has negative price", s.ID, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// List returns copies of the stores in insertion order.
func (r *Registry) List() []*Store {
	out := make([]*Store, len(r.stores))
	for i, s := range r.stores {
		out[i] = s.view()
	}
	return out
}

// Len returns the number of stores.
func (r *Registry) Len() int {
	return len(r.stores)
}

// Get returns the store with the given id.
func (r *Registry) Get(id string) (*Store, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, core.NotFoundf("store %q", id)
	}
	return s.view(), nil
}

// Has reports whether id names a registered store.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Supports reports whether store id advertises capability c. Unknown ids
// report false.
func (r *Registry) Supports(id string, c core.Capability) bool {
	s, ok := r.byID[id]
	return ok && s.Supports(c)
}

// String is used in log lines.
func (r *Registry) String() string {
	return fmt.Sprintf("registry(%d stores)", len(r.stores))
}
