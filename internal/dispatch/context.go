// Package dispatch turns a resource schema plus a runtime context into
// concrete HTTP calls: listing items into generic rows, and executing
// schema-declared actions with confirmation gating.
package dispatch

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"cloudtop/internal/schema"
)

// Context carries the runtime values available for {placeholder}
// substitution. Rebuilt per navigation transition, never persisted.
type Context struct {
	Project string
	Zone    string

	// Values holds item-supplied fields (sub-resource parents, action
	// targets). May be nil.
	Values map[string]string
}

// WithValue returns a copy of c with one extra substitution value.
func (c Context) WithValue(key, val string) Context {
	vals := make(map[string]string, len(c.Values)+1)
	for k, v := range c.Values {
		vals[k] = v
	}
	vals[key] = val
	c.Values = vals
	return c
}

// lookup resolves one placeholder name. region is derived from the
// zone ("us-central1-a" -> "us-central1") unless overridden.
func (c Context) lookup(name string) (string, bool) {
	if v, ok := c.Values[name]; ok && v != "" {
		return v, true
	}
	switch name {
	case "project":
		return c.Project, c.Project != ""
	case "zone":
		return c.Zone, c.Zone != ""
	case "region":
		r := RegionFromZone(c.Zone)
		return r, r != ""
	}
	return "", false
}

// RegionFromZone strips the zone suffix: "europe-west1-b" ->
// "europe-west1".
func RegionFromZone(zone string) string {
	if i := strings.LastIndex(zone, "-"); i > 0 {
		return zone[:i]
	}
	return zone
}

// MissingContextError: a path template references a placeholder the
// context cannot supply. A schema/programming error, fatal to the one
// call only.
type MissingContextError struct {
	Placeholder string
	Template    string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("no context value for {%s} in %q", e.Placeholder, e.Template)
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_-]*)\}`)

// buildURL joins base and path and substitutes every placeholder from
// the context. The first unresolved placeholder aborts the build.
func buildURL(base, path string, c Context) (string, error) {
	full := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")

	var missing string
	out := placeholderRe.ReplaceAllStringFunc(full, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if v, ok := c.lookup(name); ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return tok
	})
	if missing != "" {
		return "", &MissingContextError{Placeholder: missing, Template: path}
	}
	return out, nil
}

// SubContext derives the child context for a sub-resource listing:
// the parent's context plus the parent item's id field injected under
// the declared filter parameter. An absent parent field is a missing
// context value, not a silently omitted filter.
func SubContext(parent *schema.Resource, sub schema.SubResource, item json.RawMessage, c Context) (Context, error) {
	val := schema.Field(item, sub.ParentIDField)
	if val == "" {
		return Context{}, &MissingContextError{Placeholder: sub.ParentIDField, Template: sub.ResourceKey}
	}
	child := c.WithValue(sub.FilterParam, val)

	// Zonal/regional parents carry their scope as self-link URLs;
	// surface the tails so child templates can reference them.
	if zone := schema.Field(item, "zone"); zone != "" {
		child = child.WithValue("zone", schema.URLTail(zone))
	}
	if region := schema.Field(item, "region"); region != "" {
		child = child.WithValue("region", schema.URLTail(region))
	}
	if loc := schema.Field(item, "location"); loc != "" {
		child = child.WithValue("location", loc)
	}
	return child, nil
}
