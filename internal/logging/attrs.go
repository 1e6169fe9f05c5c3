package logging

import "log/slog"

// attrsToMap flattens attrs (and nested groups) into a field map; it returns
// nil when nothing keyed remains.
func attrsToMap(attrs []slog.Attr) map[string]any {
	values := map[string]any{}
	for _, attr := range attrs {
		if key, value, ok := resolveAttr(attr); ok {
			values[key] = value
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func resolveAttr(attr slog.Attr) (string, any, bool) {
	if attr.Key == "" {
		return "", nil, false
	}
	value := attr.Value.Resolve()
	if value.Kind() != slog.KindGroup {
		return attr.Key, value.Any(), true
	}
	return attr.Key, attrsToMap(value.Group()), true
}
