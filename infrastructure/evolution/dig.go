package evolution

import "strings"

// dig walks nested map[string]any payloads, returning nil on any miss. The
// gateway's payloads are too irregular for struct decoding.
func dig(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = node[k]
		if !ok {
			return nil
		}
	}
	return cur
}

func digMap(m map[string]any, keys ...string) map[string]any {
	v, _ := dig(m, keys...).(map[string]any)
	return v
}

func digSlice(m map[string]any, keys ...string) []any {
	v, _ := dig(m, keys...).([]any)
	return v
}

func digString(m map[string]any, keys ...string) string {
	v, _ := dig(m, keys...).(string)
	return strings.TrimSpace(v)
}

func digBool(m map[string]any, keys ...string) (bool, bool) {
	v, ok := dig(m, keys...).(bool)
	return v, ok
}

func hasKey(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	v, ok := m[key]
	return ok && v != nil
}
