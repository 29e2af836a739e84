package getsafe

import "fmt"

func String(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Metadata(payload map[string]any, key string) map[string]any {
	if v, ok := payload[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// StringMap flattens a nested payload object into string values. Non-string
// scalars are formatted, nested objects are skipped.
func StringMap(payload map[string]any, key string) map[string]string {
	raw := Metadata(payload, key)
	if raw == nil {
		return map[string]string{}
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case map[string]any, []any, nil:
			continue
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}

	return out
}
