package compose

import "github.com/tinywideclouds/go-snspush-service/pkg/push"

// DeepMerge returns a new map holding base overlaid with override.
// Nested maps merge key by key; every other override value (scalars, slices,
// or a map landing on a non-map) replaces the base value. Neither input is modified.
func DeepMerge(base, override map[string]any) map[string]any {
	out := cloneMap(base)
	for k, ov := range override {
		om, overrideIsMap := asMap(ov)
		bm, baseIsMap := asMap(out[k])
		if overrideIsMap && baseIsMap {
			out[k] = DeepMerge(bm, om)
			continue
		}
		out[k] = cloneValue(ov)
	}
	return out
}

// asMap accepts the map shapes that reach us from JSON decoding and from
// our own typed aliases.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case push.Alert:
		return m, true
	case push.Data:
		return m, true
	case push.Options:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if m, ok := asMap(v); ok {
		return cloneMap(m)
	}
	if s, ok := v.([]any); ok {
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
