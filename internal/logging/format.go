package logging

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const clipWidth = 240

// Clip flattens value onto one line and cuts it to a printable width,
// counting ANSI-styled text by its visible cells.
func Clip(value string) string {
	value = strings.TrimSpace(value)
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	if value == "" {
		return "<empty>"
	}
	if ansi.StringWidth(value) > clipWidth {
		return ansi.Truncate(value, clipWidth, "...")
	}
	return value
}

// FormatPayload renders a wire payload for logs. JSON is re-indented without
// HTML escaping; anything else is returned trimmed.
func FormatPayload(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "<empty>"
	}
	var quoted string
	if err := json.Unmarshal([]byte(trimmed), &quoted); err == nil {
		trimmed = strings.TrimSpace(quoted)
	}
	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
		if out, encErr := marshalPrettyJSON(value); encErr == nil {
			return out
		}
	}
	return trimmed
}

func FormatEventLine(event Event) string {
	ts := event.Time.Format("15:04:05")
	level := strings.ToUpper(event.Level.String())
	fields := ""
	if len(event.Fields) > 0 {
		keys := orderedFieldKeys(event.Fields)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, formatFieldValue(event.Fields[key])))
		}
		fields = " " + strings.Join(parts, " ")
	}
	return fmt.Sprintf("%s [%s] %s%s\n", ts, level, event.Message, fields)
}

func formatFieldValue(value any) string {
	if value == nil {
		return "<nil>"
	}
	if pretty, ok := prettyJSONString(value); ok {
		return pretty
	}
	return Clip(fmt.Sprintf("%v", value))
}

func marshalPrettyJSON(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// prettyJSONString renders containers (maps, slices, structs, or strings that
// hold a JSON object/array) as indented JSON.
func prettyJSONString(value any) (string, bool) {
	if value == nil {
		return "", false
	}
	if errValue, ok := value.(error); ok {
		return prettyJSONString(errValue.Error())
	}
	if textValue, ok := value.(encoding.TextMarshaler); ok {
		if text, err := textValue.MarshalText(); err == nil {
			return prettyJSONString(string(text))
		}
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	value = rv.Interface()

	switch v := value.(type) {
	case string:
		return decodeJSONContainer(v)
	case []byte:
		return decodeJSONContainer(string(v))
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if out, err := marshalPrettyJSON(value); err == nil {
			return out, true
		}
	}
	return "", false
}

func decodeJSONContainer(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return "", false
	}
	switch decoded.(type) {
	case map[string]any, []any:
	default:
		return "", false
	}
	out, err := marshalPrettyJSON(decoded)
	if err != nil {
		return "", false
	}
	return out, true
}

// orderedFieldKeys puts inline scalars first, then JSON blocks, with payload
// style keys last.
func orderedFieldKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	inline := make([]string, 0, len(keys))
	jsonKeys := make([]string, 0, len(keys))
	payloadKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := prettyJSONString(fields[key]); !ok {
			inline = append(inline, key)
			continue
		}
		if isPayloadFieldKey(key) {
			payloadKeys = append(payloadKeys, key)
		} else {
			jsonKeys = append(jsonKeys, key)
		}
	}
	return append(append(inline, jsonKeys...), payloadKeys...)
}

func isPayloadFieldKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "payload", "params", "response", "body", "data":
		return true
	default:
		return false
	}
}
