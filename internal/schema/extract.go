package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// EmptyPlaceholder is rendered for missing or null leaf values.
// Partial data never aborts a list.
const EmptyPlaceholder = "-"

// normalizePath rewrites bracket array notation to dotted form, e.g.
// "networkInterfaces[0].networkIP" -> "networkInterfaces.0.networkIP".
func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	return path
}

// Field returns the raw string value at path, or "" when absent.
// Used for identity fields (id/name) where display formatting would
// corrupt the value.
func Field(item []byte, path string) string {
	return gjson.GetBytes(item, normalizePath(path)).String()
}

// Extract returns the display string for the value at path inside one
// item record. Missing leaves render as the empty placeholder.
func Extract(item []byte, path string) string {
	return formatValue(gjson.GetBytes(item, normalizePath(path)))
}

func formatValue(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return EmptyPlaceholder
	case gjson.String:
		return shortenResourceURL(v.Str)
	case gjson.Number:
		if v.Num == float64(int64(v.Num)) {
			return fmt.Sprintf("%.0f", v.Num)
		}
		return fmt.Sprintf("%v", v.Num)
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	}
	if v.IsArray() {
		n := len(v.Array())
		if n == 0 {
			return EmptyPlaceholder
		}
		return fmt.Sprintf("[%d items]", n)
	}
	if v.IsObject() {
		return "[object]"
	}
	return EmptyPlaceholder
}

// shortenResourceURL reduces self-link style values to their last path
// segment (machine type URLs, "projects/p/zones/z", ...).
func shortenResourceURL(s string) string {
	if strings.HasPrefix(s, "https://www.googleapis.com/") || strings.HasPrefix(s, "projects/") {
		if i := strings.LastIndex(s, "/"); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

// URLTail returns the last path segment of s ("…/zones/us-central1-a"
// -> "us-central1-a"). Non-URL values pass through.
func URLTail(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Items extracts the list of item records from a decoded response
// body. An empty responsePath accepts either a bare array or a single
// object; "a.*.b" collects the b arrays across every value of the
// object at a (aggregated list responses); otherwise the array at the
// dotted path is returned. A missing or non-array path yields an
// empty slice, not an error.
func Items(body []byte, responsePath string) []json.RawMessage {
	if responsePath == "" {
		root := gjson.ParseBytes(body)
		if root.IsArray() {
			return rawItems(root.Array())
		}
		if root.Exists() {
			return []json.RawMessage{json.RawMessage(root.Raw)}
		}
		return nil
	}

	if strings.Contains(responsePath, ".*.") {
		return aggregatedItems(body, responsePath)
	}

	v := gjson.GetBytes(body, normalizePath(responsePath))
	if !v.IsArray() {
		return nil
	}
	return rawItems(v.Array())
}

// aggregatedItems handles "items.*.subnetworks": items is a map of
// scope -> { subnetworks: [...] }; collect every inner array.
func aggregatedItems(body []byte, path string) []json.RawMessage {
	parts := strings.SplitN(path, ".*.", 2)
	if len(parts) != 2 {
		return nil
	}
	scopeMap := gjson.GetBytes(body, normalizePath(parts[0]))
	if !scopeMap.IsObject() {
		return nil
	}
	var out []json.RawMessage
	scopeMap.ForEach(func(_, scope gjson.Result) bool {
		inner := scope.Get(normalizePath(parts[1]))
		if inner.IsArray() {
			out = append(out, rawItems(inner.Array())...)
		}
		return true
	})
	return out
}

func rawItems(vals []gjson.Result) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		out = append(out, json.RawMessage(v.Raw))
	}
	return out
}
