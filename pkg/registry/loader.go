package registry

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/agent-protocol/ucp-shopper/pkg/config"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

//go:embed data/*.json
var builtinCatalogs embed.FS

// Load builds a registry from configuration. Catalog files are read from
// cfg.CatalogDir, or from the built-in catalogs when it is empty.
func Load(cfg config.StoresConfig) (*Registry, error) {
	var fsys fs.FS
	if cfg.CatalogDir != "" {
		fsys = os.DirFS(cfg.CatalogDir)
	} else {
		sub, err := fs.Sub(builtinCatalogs, "data")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}
	return LoadFS(cfg, fsys)
}

// LoadFS builds a registry reading catalog files from fsys.
func LoadFS(cfg config.StoresConfig, fsys fs.FS) (*Registry, error) {
	stores := make([]*Store, 0, len(cfg.Stores))
	for _, sc := range cfg.Stores {
		products, err := readCatalog(fsys, sc.Catalog)
		if err != nil {
			return nil, fmt.Errorf("store %q: %w", sc.ID, err)
		}
		for i := range products {
			products[i].ImageURL = resolveImageURL(cfg.ImageBaseURL, products[i].ImageURL)
		}

		caps := make([]core.Capability, 0, len(sc.Capabilities))
		for _, c := range sc.Capabilities {
			caps = append(caps, core.Capability(c))
		}
		name := sc.Name
		if name == "" {
			name = sc.ID
		}
		s := NewStore(sc.ID, name, products, caps...)
		if sc.Currency != "" {
			s.Currency = sc.Currency
		}
		stores = append(stores, s)
	}
	return New(stores...)
}

// DefaultRegistry builds the two demo coffee stores from the built-in
// catalogs.
func DefaultRegistry() (*Registry, error) {
	return Load(config.DefaultConfig().Stores)
}

func readCatalog(fsys fs.FS, name string) ([]core.Product, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, core.Internalf("failed to read catalog %s: %v", name, err)
	}
	var products []core.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, core.Internalf("failed to parse catalog %s: %v", name, err)
	}
	return products, nil
}

func resolveImageURL(base, ref string) string {
	if ref == "" || base == "" {
		return ref
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}
