// Package schema holds the declarative resource model: what API to
// call for a resource type, how to pull items out of the response, and
// which columns, actions and sub-resources it exposes. Definitions are
// data (JSON documents), not code; the dispatch engine interprets them
// at runtime.
package schema

import "fmt"

// API describes the list endpoint for a resource. Path may contain
// {placeholder} tokens resolved from the runtime context.
type API struct {
	Base   string `json:"base"`
	Path   string `json:"path"`
	Method string `json:"method"`
}

// Column maps a JSON path on an item to a table column.
type Column struct {
	Header   string `json:"header"`
	JSONPath string `json:"json_path"`
	Width    int    `json:"width"`
	ColorMap string `json:"color_map,omitempty"`
}

// Confirm describes the confirmation gate for an action.
type Confirm struct {
	Message     string `json:"message"`
	Destructive bool   `json:"destructive,omitempty"`
}

// ActionAPI is the mutating endpoint of an action. Its path may
// additionally reference fields of the selected item ({name}, {id}).
type ActionAPI struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Action is a schema-declared mutating operation.
type Action struct {
	DisplayName string    `json:"display_name"`
	API         ActionAPI `json:"api"`
	Shortcut    string    `json:"shortcut,omitempty"`
	Confirm     *Confirm  `json:"confirm,omitempty"`
}

// SubResource points at another resource listed in the context of a
// selected parent item.
type SubResource struct {
	ResourceKey   string `json:"resource_key"`
	DisplayName   string `json:"display_name"`
	Shortcut      string `json:"shortcut"`
	ParentIDField string `json:"parent_id_field"`
	FilterParam   string `json:"filter_param"`
}

// Resource is one resource type's full declarative definition.
type Resource struct {
	// Key is the registry map key, filled in at load time.
	Key string `json:"-"`

	DisplayName  string        `json:"display_name"`
	Service      string        `json:"service"`
	API          API           `json:"api"`
	ResponsePath string        `json:"response_path"`
	IDField      string        `json:"id_field"`
	NameField    string        `json:"name_field"`
	Columns      []Column      `json:"columns"`
	Actions      []Action      `json:"actions,omitempty"`
	SubResources []SubResource `json:"sub_resources,omitempty"`
}

// ColorRule maps a cell value to an RGB color.
type ColorRule struct {
	Value string   `json:"value"`
	Color [3]uint8 `json:"color"`
}

// Shortcuts the navigation layer owns; action shortcuts must not
// collide with them.
var reservedShortcuts = map[string]bool{
	"d": true, "g": true, "G": true, "j": true, "k": true,
	"r": true, "q": true, "?": true, ":": true, "/": true,
	"backspace": true,
}

// ReservedShortcut reports whether s is claimed by a built-in binding.
func ReservedShortcut(s string) bool { return reservedShortcuts[s] }

// DuplicateKeyError: two documents declare the same resource key.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate resource key %q", e.Key)
}

// ShortcutConflictError: an action shortcut is reserved or repeated
// within a schema.
type ShortcutConflictError struct {
	Key      string
	Shortcut string
}

func (e *ShortcutConflictError) Error() string {
	return fmt.Sprintf("resource %q: shortcut %q conflicts with a reserved or existing binding", e.Key, e.Shortcut)
}

// InvalidColumnError: an empty json_path or id/name field path.
type InvalidColumnError struct {
	Key    string
	Detail string
}

func (e *InvalidColumnError) Error() string {
	return fmt.Sprintf("resource %q: %s", e.Key, e.Detail)
}

// UnknownResourceKeyError: a sub-resource reference that does not
// resolve. Raised at navigation time, not at load.
type UnknownResourceKeyError struct {
	Key string
}

func (e *UnknownResourceKeyError) Error() string {
	return fmt.Sprintf("unknown resource key %q", e.Key)
}
