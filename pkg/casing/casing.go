// Package casing rewrites object keys between snake_case (storage) and
// camelCase (API) recursively.
//
// Fields mirrored verbatim from external systems are declared passthrough on
// a Schema. A passthrough key is left as-is in both directions and its value
// is not descended into, so the two directions treat it the same way.
package casing

import (
	"reflect"
	"strings"
	"time"
	"unicode"
)

const tagName = "casing"

// Schema is the set of passthrough keys for one API surface.
type Schema struct {
	passthrough map[string]struct{}
}

// NewSchema returns a schema with the given passthrough keys.
func NewSchema(keys ...string) *Schema {
	s := &Schema{passthrough: make(map[string]struct{}, len(keys))}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key != "" {
			s.passthrough[key] = struct{}{}
		}
	}
	return s
}

// FromModels builds a schema from struct fields tagged `casing:"passthrough"`.
// The json tag name of each tagged field becomes a passthrough key.
func FromModels(models ...any) *Schema {
	s := NewSchema()
	for _, model := range models {
		s.collect(reflect.TypeOf(model))
	}
	return s
}

func (s *Schema) collect(t reflect.Type) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			s.collect(field.Type)
			continue
		}
		if field.Tag.Get(tagName) != "passthrough" {
			continue
		}
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			name = field.Name
		}
		s.passthrough[name] = struct{}{}
	}
}

// IsPassthrough reports whether key is exempt from conversion.
func (s *Schema) IsPassthrough(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.passthrough[key]
	return ok
}

// Keys returns the passthrough keys in no particular order.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.passthrough))
	for key := range s.passthrough {
		keys = append(keys, key)
	}
	return keys
}

// ToCamel converts every non-passthrough key in value to camelCase.
func (s *Schema) ToCamel(value any) any {
	return s.transform(value, SnakeToCamel)
}

// ToSnake converts every non-passthrough key in value to snake_case.
func (s *Schema) ToSnake(value any) any {
	return s.transform(value, CamelToSnake)
}

// ToCamelCase converts keys with no passthrough fields.
func ToCamelCase(value any) any {
	return (*Schema)(nil).ToCamel(value)
}

// ToSnakeCase converts keys with no passthrough fields.
func ToSnakeCase(value any) any {
	return (*Schema)(nil).ToSnake(value)
}

func (s *Schema) transform(value any, convert func(string) string) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time, *time.Time:
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if s.IsPassthrough(key) {
				out[key] = item
				continue
			}
			out[convert(key)] = s.transform(item, convert)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.transform(item, convert)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.transform(item, convert)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			if s.IsPassthrough(key) {
				out[key] = item
				continue
			}
			out[convert(key)] = item
		}
		return out
	default:
		return v
	}
}

// SnakeToCamel converts a single key. Keys without underscores are returned
// unchanged; leading underscores are kept.
func SnakeToCamel(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}

	trimmed := strings.TrimLeft(key, "_")
	prefix := key[:len(key)-len(trimmed)]
	parts := strings.Split(trimmed, "_")

	var b strings.Builder
	b.Grow(len(key))
	b.WriteString(prefix)
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// CamelToSnake converts a single key. Runs of capitals are treated as one
// word ("userID" -> "user_id", "HTTPStatus" -> "http_status").
func CamelToSnake(key string) string {
	runes := []rune(key)
	var b strings.Builder
	b.Grow(len(key) + 4)

	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prev != '_' && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
