// Package config loads the endpoint catalog and the runtime
// configuration for the crawl.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml"
)

// ErrCatalog is returned for structurally invalid catalogs.
var ErrCatalog = errors.New("invalid endpoint catalog")

// Catalog maps API namespaces (e.g. "compras_federal") to their
// endpoint groups. It is the TOML document driving a whole run.
type Catalog struct {
	APIs map[string]API
}

// API is one upstream data provider.
type API struct {
	// BaseURL is the provider's entry point (e.g. https://api.gov.br).
	BaseURL string

	// Endpoints groups related resources, keyed by group name.
	Endpoints map[string]EndpointGroup
}

// EndpointGroup carries per-group normalization metadata plus the
// dynamic route keys. In the TOML document every key of a group table
// that is not a known metadata key is a route: the key names the
// output file, the value is the relative URL path.
type EndpointGroup struct {
	// RootPath names the JSON key holding the record list (e.g.
	// "resultado", "dados"). Empty means the document root is already
	// the list.
	RootPath string

	// Routes maps endpoint keys to relative paths.
	Routes map[string]string
}

// catalog metadata keys that are not routes.
const rootPathKey = "root_path"

// LoadCatalog reads and validates a TOML endpoint catalog.
func LoadCatalog(path string) (*Catalog, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	cat, err := catalogFromMap(tree.ToMap())
	if err != nil {
		return nil, err
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

func catalogFromMap(doc map[string]any) (*Catalog, error) {
	cat := &Catalog{APIs: make(map[string]API, len(doc))}
	for apiName, raw := range doc {
		apiTable, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a table", ErrCatalog, apiName)
		}

		api := API{Endpoints: make(map[string]EndpointGroup)}
		if v, ok := apiTable["base_url"]; ok {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s.base_url is not a string", ErrCatalog, apiName)
			}
			api.BaseURL = s
		}

		groups, _ := apiTable["endpoints"].(map[string]any)
		for groupName, rawGroup := range groups {
			groupTable, ok := rawGroup.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s.endpoints.%s is not a table", ErrCatalog, apiName, groupName)
			}
			group := EndpointGroup{Routes: make(map[string]string)}
			for key, value := range groupTable {
				s, ok := value.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s.endpoints.%s.%s is not a string", ErrCatalog, apiName, groupName, key)
				}
				if key == rootPathKey {
					group.RootPath = s
					continue
				}
				group.Routes[key] = s
			}
			api.Endpoints[groupName] = group
		}
		cat.APIs[apiName] = api
	}
	return cat, nil
}

// validate fails fast on catalogs that cannot drive a run.
func (c *Catalog) validate() error {
	for apiName, api := range c.APIs {
		if api.BaseURL == "" {
			return fmt.Errorf("%w: %q has no base_url", ErrCatalog, apiName)
		}
		if len(api.Endpoints) == 0 {
			return fmt.Errorf("%w: %q has no endpoints", ErrCatalog, apiName)
		}
	}
	return nil
}

// ResolveURL returns the full URL for one endpoint key.
func (c *Catalog) ResolveURL(api, group, key string) (string, error) {
	apiCfg, ok := c.APIs[api]
	if !ok {
		return "", fmt.Errorf("%w: unknown API %q", ErrCatalog, api)
	}
	groupCfg, ok := apiCfg.Endpoints[group]
	if !ok {
		return "", fmt.Errorf("%w: unknown group %q in %q", ErrCatalog, group, api)
	}
	route, ok := groupCfg.Routes[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown key %q in %s.%s", ErrCatalog, key, api, group)
	}
	return joinURL(apiCfg.BaseURL, route), nil
}

// joinURL concatenates base and path without duplicating slashes.
func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
