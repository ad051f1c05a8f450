package db

import "testing"

func TestJSONB(t *testing.T) {
	type property struct {
		Address string `json:"address"`
	}
	var nilProperty *property
	var nilMap map[string]any

	cases := []struct {
		name  string
		value any
		want  any
	}{
		{"nil", nil, nil},
		{"nil pointer", nilProperty, nil},
		{"nil map", nilMap, nil},
		{"struct pointer", &property{Address: "1 Main"}, `{"address":"1 Main"}`},
		{"map", map[string]any{"a": 1}, `{"a":1}`},
	}
	for _, tc := range cases {
		got, err := JSONB(tc.value)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
