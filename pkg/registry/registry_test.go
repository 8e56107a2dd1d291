package registry

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-protocol/ucp-shopper/pkg/config"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	stores := reg.List()
	require.Len(t, stores, 2)
	assert.Equal(t, "tierra_de_cafe", stores[0].ID)
	assert.Equal(t, "cafe_con_alma", stores[1].ID)

	assert.False(t, reg.Supports("tierra_de_cafe", core.CapabilityCheckout))
	assert.True(t, reg.Supports("cafe_con_alma", core.CapabilityCheckout))

	alma, err := reg.Get("cafe_con_alma")
	require.NoError(t, err)
	p, ok := alma.Product("COFFEE-001")
	require.True(t, ok)
	assert.Equal(t, int64(1299), p.Price)
	assert.Equal(t, "USD", alma.Currency)
}

func TestGetUnknownStore(t *testing.T) {
	reg, err := New(NewStore("a", "A", nil))
	require.NoError(t, err)

	_, err = reg.Get("nope")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.False(t, reg.Supports("nope", core.CapabilityCheckout))
	assert.False(t, reg.Has("nope"))
}

func TestNewRejectsInvalidStores(t *testing.T) {
	_, err := New(NewStore("a", "A", nil), NewStore("a", "A again", nil))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = New(NewStore("", "blank", nil))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	dup := []core.Product{{ID: "x", Title: "X"}, {ID: "x", Title: "Y"}}
	_, err = New(NewStore("a", "A", dup))
	assert.ErrorIs(t, err, core.ErrInternal)

	_, err = New(NewStore("a", "A", []core.Product{{Title: "no id"}}))
	assert.ErrorIs(t, err, core.ErrInternal)
}

func TestListIsACopy(t *testing.T) {
	reg, err := New(NewStore("a", "A", nil), NewStore("b", "B", nil))
	require.NoError(t, err)

	list := reg.List()
	list[0] = nil
	assert.NotNil(t, reg.List()[0])
}

func TestStoresAreDetachedFromCallers(t *testing.T) {
	catalog := []core.Product{{ID: "P1", Title: "Beans", Price: 100}}
	src := NewStore("a", "A", catalog, core.CapabilityCheckout)
	src.Currency = ""
	reg, err := New(src)
	require.NoError(t, err)

	assert.Empty(t, src.Currency)
	catalog[0].Title = "changed"

	got, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)
	got.ID = "renamed"
	got.Currency = "EUR"
	got.Catalog()[0].Price = 1

	again, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", again.ID)
	assert.Equal(t, "USD", again.Currency)
	p, ok := again.Product("P1")
	require.True(t, ok)
	assert.Equal(t, "Beans", p.Title)
	assert.Equal(t, int64(100), p.Price)
	assert.True(t, reg.List()[0].Supports(core.CapabilityCheckout))
}

func TestLoadFSResolvesImages(t *testing.T) {
	fsys := fstest.MapFS{
		"beans.json": {Data: []byte(`[
			{"id": "B1", "title": "Beans", "price": 500, "image_url": "images/b1.jpg"},
			{"id": "B2", "title": "Mug", "price": 800, "image_url": "https://cdn.example.com/mug.jpg"}
		]`)},
	}
	cfg := config.StoresConfig{
		ImageBaseURL: "http://localhost:10999/",
		Stores: []config.StoreConfig{
			{ID: "beans", Catalog: "beans.json", Capabilities: []string{string(core.CapabilityCheckout)}, Currency: "EUR"},
		},
	}

	reg, err := LoadFS(cfg, fsys)
	require.NoError(t, err)

	s, err := reg.Get("beans")
	require.NoError(t, err)
	assert.Equal(t, "beans", s.Name)
	assert.Equal(t, "EUR", s.Currency)
	assert.Equal(t, "http://localhost:10999/images/b1.jpg", s.Catalog()[0].ImageURL)
	assert.Equal(t, "https://cdn.example.com/mug.jpg", s.Catalog()[1].ImageURL)
	assert.Equal(t, StoreInfo{
		ID:           "beans",
		Name:         "beans",
		Capabilities: []string{"dev.ucp.shopping.checkout"},
		ProductCount: 2,
	}, s.Info())
}

func TestLoadFSCorruptCatalog(t *testing.T) {
	fsys := fstest.MapFS{"bad.json": {Data: []byte(`{not json`)}}
	cfg := config.StoresConfig{Stores: []config.StoreConfig{{ID: "bad", Catalog: "bad.json"}}}

	_, err := LoadFS(cfg, fsys)
	assert.ErrorIs(t, err, core.ErrInternal)

	cfg.Stores[0].Catalog = "missing.json"
	_, err = LoadFS(cfg, fsys)
	assert.ErrorIs(t, err, core.ErrInternal)
}
