package forms

import (
	"sort"
	"strconv"
)

// Field is one scalar leaf of an extraction.
type Field struct {
	Path       string
	Value      string
	Confidence *float64
}

// Flatten walks an extraction and returns its scalar leaves addressed by
// dotted paths, e.g. header.payer_name or transactions[0].proceeds.
// Null leaves are skipped. A numeric "confidence" key is not emitted; it
// becomes the confidence of its sibling leaves.
func Flatten(v any) []Field {
	var out []Field
	walk("", v, nil, &out)
	return out
}

func walk(path string, v any, conf *float64, out *[]Field) {
	switch x := v.(type) {
	case nil:
		return
	case map[string]any:
		local := conf
		if c, ok := x["confidence"].(float64); ok {
			local = &c
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "confidence" {
				if _, ok := x[k].(float64); ok {
					continue
				}
			}
			walk(join(path, k), x[k], local, out)
		}
	case []any:
		for i, item := range x {
			walk(path+"["+strconv.Itoa(i)+"]", item, conf, out)
		}
	default:
		s, ok := ScalarString(x)
		if !ok {
			return
		}
		if path == "" {
			path = "value"
		}
		*out = append(*out, Field{Path: path, Value: s, Confidence: conf})
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
