// Package compose turns one logical alert into the provider-native payloads
// and the multi-provider envelope handed to the transport.
package compose

import (
	"reflect"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// legacyAlertKeys maps historical snake_case localization keys to the
// hyphenated names APNs expects.
var legacyAlertKeys = []struct{ from, to string }{
	{"body_loc_key", "loc-key"},
	{"body_loc_args", "loc-args"},
	{"title_loc_key", "title-loc-key"},
	{"title_loc_args", "title-loc-args"},
}

// NormalizeAlert returns a copy of alert with legacy localization keys renamed.
// A legacy key is always removed; its value is carried over only when non-empty.
func NormalizeAlert(alert push.Alert) push.Alert {
	out := make(push.Alert, len(alert))
	for k, v := range alert {
		out[k] = v
	}
	for _, m := range legacyAlertKeys {
		v, ok := out[m.from]
		if !ok {
			continue
		}
		delete(out, m.from)
		if !isEmpty(v) {
			out[m.to] = v
		}
	}
	return out
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
