package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/jsonc"
)

//go:embed resources/*.json
var resourceFS embed.FS

// document is the on-disk shape of one schema file. Documents may
// carry // comments and trailing commas (stripped before decoding).
type document struct {
	ColorMaps map[string][]ColorRule `json:"color_maps"`
	Resources map[string]*Resource   `json:"resources"`
}

// Registry indexes all loaded resource definitions and color maps.
type Registry struct {
	resources map[string]*Resource
	colorMaps map[string][]ColorRule
}

// Load parses and validates a set of schema documents. Validation is
// collective and fail-fast: any structurally invalid document, any
// duplicate key across documents, and any per-schema shortcut or
// column violation aborts the whole load. Sub-resource references are
// recorded but only resolved when navigation is attempted.
func Load(docs [][]byte) (*Registry, error) {
	r := &Registry{
		resources: map[string]*Resource{},
		colorMaps: map[string][]ColorRule{},
	}

	for i, raw := range docs {
		var doc document
		if err := json.Unmarshal(jsonc.ToJSON(raw), &doc); err != nil {
			return nil, fmt.Errorf("schema document %d: %w", i, err)
		}
		for name, rules := range doc.ColorMaps {
			r.colorMaps[name] = rules
		}
		for key, res := range doc.Resources {
			if _, exists := r.resources[key]; exists {
				return nil, &DuplicateKeyError{Key: key}
			}
			res.Key = key
			r.resources[key] = res
		}
	}

	for key, res := range r.resources {
		if err := validate(key, res); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadEmbedded loads the shipped resource documents.
func LoadEmbedded() (*Registry, error) {
	entries, err := resourceFS.ReadDir("resources")
	if err != nil {
		return nil, err
	}
	var docs [][]byte
	for _, e := range entries {
		b, err := resourceFS.ReadFile("resources/" + e.Name())
		if err != nil {
			return nil, err
		}
		docs = append(docs, b)
	}
	return Load(docs)
}

func validate(key string, res *Resource) error {
	if res.IDField == "" {
		return &InvalidColumnError{Key: key, Detail: "empty id_field"}
	}
	if res.NameField == "" {
		return &InvalidColumnError{Key: key, Detail: "empty name_field"}
	}
	for i, col := range res.Columns {
		if col.JSONPath == "" {
			return &InvalidColumnError{Key: key, Detail: fmt.Sprintf("column %d (%s): empty json_path", i, col.Header)}
		}
	}

	seen := map[string]bool{}
	for _, act := range res.Actions {
		if act.Shortcut == "" {
			continue
		}
		if ReservedShortcut(act.Shortcut) || seen[act.Shortcut] {
			return &ShortcutConflictError{Key: key, Shortcut: act.Shortcut}
		}
		seen[act.Shortcut] = true
	}
	for _, sub := range res.SubResources {
		if ReservedShortcut(sub.Shortcut) || seen[sub.Shortcut] {
			return &ShortcutConflictError{Key: key, Shortcut: sub.Shortcut}
		}
		seen[sub.Shortcut] = true
	}
	return nil
}

// Get returns the resource for key, if registered.
func (r *Registry) Get(key string) (*Resource, bool) {
	res, ok := r.resources[key]
	return res, ok
}

// Resolve is Get with the lazy-reference error attached; used when a
// sub-resource key is actually navigated.
func (r *Registry) Resolve(key string) (*Resource, error) {
	res, ok := r.resources[key]
	if !ok {
		return nil, &UnknownResourceKeyError{Key: key}
	}
	return res, nil
}

// Keys returns all resource keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.resources))
	for k := range r.resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ColorMap returns the named value→color rule set.
func (r *Registry) ColorMap(name string) ([]ColorRule, bool) {
	rules, ok := r.colorMaps[name]
	return rules, ok
}

// ColorFor returns the RGB color for value under the named map.
func (r *Registry) ColorFor(mapName, value string) ([3]uint8, bool) {
	rules, ok := r.colorMaps[mapName]
	if !ok {
		return [3]uint8{}, false
	}
	for _, rule := range rules {
		if rule.Value == value {
			return rule.Color, true
		}
	}
	return [3]uint8{}, false
}
