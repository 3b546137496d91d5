// Package template resolves {{variable}} tokens against an execution's variable bag.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var tokenPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Interpolate replaces every {{identifier}} token with the string form of vars[identifier].
// Tokens without a matching variable are kept verbatim.
func Interpolate(input string, vars map[string]any) string {
	if input == "" || len(vars) == 0 {
		return input
	}

	return tokenPattern.ReplaceAllStringFunc(input, func(token string) string {
		name := tokenPattern.FindStringSubmatch(token)[1]

		value, ok := vars[name]
		if !ok {
			return token
		}

		return Stringify(value)
	})
}

// Stringify renders a variable the way it appears inside interpolated text.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

// Merge returns a new bag with overlay entries taking precedence over base.
func Merge(base map[string]any, overlay map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overlay))

	for key, value := range base {
		merged[key] = value
	}

	for key, value := range overlay {
		merged[key] = value
	}

	return merged
}
