package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
)

func almaStore(t *testing.T) *registry.Store {
	t.Helper()
	reg, err := registry.DefaultRegistry()
	require.NoError(t, err)
	s, err := reg.Get("cafe_con_alma")
	require.NoError(t, err)
	return s
}

func ids(products []core.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestSearch(t *testing.T) {
	store := almaStore(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"single word", "coffee", []string{"COFFEE-001", "COFFEE-002", "COFFEE-004", "GEAR-002"}},
		{"case insensitive", "ESPRESSO", []string{"COFFEE-003"}},
		{"tokens in any order", "roast dark", []string{"COFFEE-003"}},
		{"substring phrase", "french press", []string{"GEAR-001"}},
		{"extra whitespace", "  french   press ", []string{"GEAR-001"}},
		{"no match", "tea", []string{}},
		{"partial token miss", "coffee tea", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Search(store, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSearchEmptyQueryReturnsWholeCatalogInOrder(t *testing.T) {
	store := almaStore(t)
	got, err := Search(store, "")
	require.NoError(t, err)
	assert.Equal(t, store.Catalog(), got)
}

func TestSearchIsDeterministic(t *testing.T) {
	store := almaStore(t)
	a, err := Search(store, "coffee")
	require.NoError(t, err)
	b, err := Search(store, "coffee")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSearchCorruptCatalog(t *testing.T) {
	_, err := Search(nil, "x")
	assert.ErrorIs(t, err, core.ErrInternal)

	bad := registry.NewStore("bad", "Bad", []core.Product{{Title: "orphan"}})
	_, err = Search(bad, "orphan")
	assert.ErrorIs(t, err, core.ErrInternal)
}

func TestSearchResults(t *testing.T) {
	res, err := SearchResults(almaStore(t), "filters")
	require.NoError(t, err)
	assert.Equal(t, "cafe_con_alma", res.StoreID)
	assert.Equal(t, "filters", res.Query)
	assert.Equal(t, []string{"GEAR-002"}, ids(res.Products))
}
