package masking

import "strings"

const (
	maskToken   = "****"
	visibleTail = 4
)

// MaskSecret hides a credential but keeps its type prefix and last characters,
// e.g. ffk_live_****9c1e.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= visibleTail*2 {
		return prefix + maskToken
	}
	return prefix + maskToken + remainder[len(remainder)-visibleTail:]
}

// MaskValues returns a copy of input with every string value masked.
func MaskValues(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		masked[key] = maskValue(value)
	}
	if len(masked) == 0 {
		return nil
	}
	return masked
}

func maskValue(value any) any {
	switch v := value.(type) {
	case string:
		return MaskSecret(v)
	case map[string]any:
		return MaskValues(v)
	case []string:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, MaskSecret(item))
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, maskValue(item))
		}
		return out
	default:
		return value
	}
}

func splitPrefix(value string) (string, string) {
	i := strings.LastIndex(value, "_")
	if i == -1 || i == len(value)-1 {
		return "", value
	}
	return value[:i+1], value[i+1:]
}
