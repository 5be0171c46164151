// Package template resolves {{path.to.value}} placeholders against the
// accumulating execution context. Resolution is read-only, output is raw
// text (no HTML escaping, results frequently feed APIs rather than
// markup), and unresolved placeholders render empty instead of failing.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][\w.\-]*)\s*\}\}`)

// Render substitutes every placeholder in input with its context value.
func Render(input string, context map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := Lookup(context, path)
		if !ok || value == nil {
			return ""
		}

		return stringify(value)
	})
}

// RenderValue renders the input and coerces the result into a structured
// value: JSON object/array when the output parses, then number, then
// boolean, falling back to the raw string.
func RenderValue(input string, context map[string]any) any {
	// A template that is exactly one placeholder passes the context value
	// through untouched, so structured data survives without a string
	// round trip.
	if match := placeholderPattern.FindStringSubmatch(strings.TrimSpace(input)); match != nil && match[0] == strings.TrimSpace(input) {
		if value, ok := Lookup(context, match[1]); ok {
			return value
		}

		return nil
	}

	result := strings.TrimSpace(Render(input, context))

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var parsed any
		if err := json.Unmarshal([]byte(result), &parsed); err == nil {
			return parsed
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b
	}

	return result
}

// Lookup walks a dotted path through nested maps and slices.
func Lookup(context map[string]any, path string) (any, bool) {
	var current any = context

	for part := range strings.SplitSeq(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}

			current = next
		case []any:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 || index >= len(v) {
				return nil, false
			}

			current = v[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// ExtractJSON parses a string that may wrap JSON in Markdown code fences,
// as model output commonly does. It returns nil on parse failure so the
// caller decides whether that is fatal.
func ExtractJSON(input string) any {
	trimmed := strings.TrimSpace(input)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil
	}

	return parsed
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}

		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
