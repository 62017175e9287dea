package ui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// json syntax colors
const (
	colorKey     = "\033[36m"
	colorString  = "\033[32m"
	colorNumber  = "\033[33m"
	colorBool    = "\033[35m"
	colorNull    = "\033[90m"
	colorBracket = "\033[37m"
)

// prettyJSON renders the raw item payload with syntax coloring for
// the describe view. Non-json input comes back verbatim.
func prettyJSON(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return colorizeJSON(v, 0)
}

func colorizeJSON(v any, indent int) string {
	prefix := strings.Repeat("  ", indent)

	switch val := v.(type) {
	case nil:
		return colorNull + "null" + colorReset
	case bool:
		return colorBool + fmt.Sprintf("%v", val) + colorReset
	case float64:
		if val == float64(int64(val)) {
			return colorNumber + fmt.Sprintf("%.0f", val) + colorReset
		}
		return colorNumber + fmt.Sprintf("%v", val) + colorReset
	case string:
		return colorString + `"` + escapeJSON(val) + `"` + colorReset
	case []any:
		if len(val) == 0 {
			return colorBracket + "[]" + colorReset
		}
		var sb strings.Builder
		sb.WriteString(colorBracket + "[" + colorReset + "\n")
		for i, item := range val {
			sb.WriteString(prefix + "  " + colorizeJSON(item, indent+1))
			if i < len(val)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
		sb.WriteString(prefix + colorBracket + "]" + colorReset)
		return sb.String()
	case map[string]any:
		if len(val) == 0 {
			return colorBracket + "{}" + colorReset
		}
		var sb strings.Builder
		sb.WriteString(colorBracket + "{" + colorReset + "\n")
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			sb.WriteString(prefix + "  " + colorKey + `"` + k + `"` + colorReset + ": ")
			sb.WriteString(colorizeJSON(val[k], indent+1))
			if i < len(keys)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
		sb.WriteString(prefix + colorBracket + "}" + colorReset)
		return sb.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}
