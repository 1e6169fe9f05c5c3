package transport

import "maps"

// Params are connection or join parameters sent to the transport. Helpers
// never modify the receiver; they return a new map.
type Params map[string]any

func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	return out
}

func (p Params) With(key string, value any) Params {
	out := p.Clone()
	out[key] = value
	return out
}

func (p Params) Without(key string) Params {
	out := p.Clone()
	delete(out, key)
	return out
}

// String returns the value under key when it is a non-empty string.
func (p Params) String(key string) (string, bool) {
	value, ok := p[key].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
