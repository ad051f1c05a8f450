package db

import (
	"encoding/json"
	"reflect"
)

// JSONB encodes a value for a jsonb column in a map update, where the model
// serializer does not run. Nil pointers, maps and slices store NULL.
func JSONB(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch rv := reflect.ValueOf(value); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
