package generators

import (
	"fmt"
	"sort"
	"strconv"
)

// Flatten projects a structured payload onto dot/array-path keys, the shape
// the data-entry editor works against. Binary values are dropped.
func Flatten(payload map[string]any) map[string]string {
	out := map[string]string{}
	flattenInto(out, "", payload)
	return out
}

func flattenInto(out map[string]string, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenInto(out, joinPath(prefix, k), v[k])
		}
	case RecordSet:
		flattenInto(out, prefix, map[string]any(v))
	case []any:
		for i, elem := range v {
			flattenInto(out, prefix+"["+strconv.Itoa(i)+"]", elem)
		}
	case []byte:
		// binary payloads have no field projection
	case nil:
		out[prefix] = ""
	case string:
		out[prefix] = v
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
