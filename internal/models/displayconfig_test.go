package models

import (
	"reflect"
	"testing"
)

func TestDeepMergeIdentity(t *testing.T) {
	base := map[string]any{
		"theme": map[string]any{"primaryColor": "#112233"},
		"sessions": []any{
			map[string]any{"id": "m1", "label": "Morning 1", "shortLabel": "M1", "startTime": "06:30", "endTime": "07:30"},
		},
	}

	got := DeepMerge(base, map[string]any{})
	if !reflect.DeepEqual(got, base) {
		t.Errorf("DeepMerge(c, {}) = %v, want %v", got, base)
	}
}

func TestDeepMergeNested(t *testing.T) {
	base := map[string]any{
		"branding": map[string]any{
			"primaryColor":   "#112233",
			"secondaryColor": "#445566",
		},
		"daysToDisplay": float64(7),
	}
	patch := map[string]any{
		"branding": map[string]any{
			"primaryColor": "#AABBCC",
		},
	}

	got := DeepMerge(base, patch)

	branding := got["branding"].(map[string]any)
	if branding["primaryColor"] != "#AABBCC" {
		t.Errorf("primaryColor = %v, want #AABBCC", branding["primaryColor"])
	}
	if branding["secondaryColor"] != "#445566" {
		t.Error("unspecified secondaryColor was not preserved")
	}
	if got["daysToDisplay"] != float64(7) {
		t.Error("unspecified daysToDisplay was not preserved")
	}

	// base must not be mutated
	if base["branding"].(map[string]any)["primaryColor"] != "#112233" {
		t.Error("DeepMerge mutated its base argument")
	}
}

func TestDeepMergeAssociativity(t *testing.T) {
	c := map[string]any{"a": map[string]any{"x": "1", "y": "2"}, "k": "keep"}
	a := map[string]any{"a": map[string]any{"x": "10"}}
	b := map[string]any{"a": map[string]any{"y": "20"}, "n": "new"}

	left := DeepMerge(DeepMerge(c, a), b)
	right := DeepMerge(c, DeepMerge(a, b))

	if !reflect.DeepEqual(left, right) {
		t.Errorf("merge(merge(c,a),b) = %v, merge(c, merge(a,b)) = %v", left, right)
	}
}

func TestDeepMergeArraysReplace(t *testing.T) {
	base := map[string]any{"sessions": []any{"a", "b"}}
	patch := map[string]any{"sessions": []any{"c"}}

	got := DeepMerge(base, patch)
	if !reflect.DeepEqual(got["sessions"], []any{"c"}) {
		t.Errorf("arrays should replace, got %v", got["sessions"])
	}
}

func validSession(id, label, short, start, end string) map[string]any {
	return map[string]any{
		"id": id, "label": label, "shortLabel": short,
		"startTime": start, "endTime": end,
	}
}

func TestValidateDisplayPatch(t *testing.T) {
	tests := []struct {
		name      string
		patch     map[string]any
		wantField string // empty means no errors expected
	}{
		{
			name: "valid patch",
			patch: map[string]any{
				"branding": map[string]any{"primaryColor": "#1A2B3C"},
				"sessions": []any{
					validSession("m1", "Morning 1", "M1", "06:30", "07:30"),
					validSession("m2", "Morning 2", "M2", "07:30", "08:30"),
				},
				"daysToDisplay":     float64(7),
				"refreshIntervalMs": float64(60000),
			},
		},
		{
			name:      "bad color",
			patch:     map[string]any{"primaryColor": "#12"},
			wantField: "primaryColor",
		},
		{
			name:      "bad nested color",
			patch:     map[string]any{"branding": map[string]any{"headerColor": "red"}},
			wantField: "branding.headerColor",
		},
		{
			name:      "empty sessions",
			patch:     map[string]any{"sessions": []any{}},
			wantField: "sessions",
		},
		{
			name: "duplicate shortLabel",
			patch: map[string]any{"sessions": []any{
				validSession("a", "A", "AM", "06:00", "07:00"),
				validSession("b", "B", "AM", "07:00", "08:00"),
			}},
			wantField: "sessions[1].shortLabel",
		},
		{
			name: "shortLabel too long",
			patch: map[string]any{"sessions": []any{
				validSession("a", "A", "MORNING", "06:00", "07:00"),
			}},
			wantField: "sessions[0].shortLabel",
		},
		{
			name: "start equals end",
			patch: map[string]any{"sessions": []any{
				validSession("a", "A", "AM", "06:00", "06:00"),
			}},
			wantField: "sessions[0].startTime",
		},
		{
			name: "end before start",
			patch: map[string]any{"sessions": []any{
				validSession("a", "A", "AM", "07:00", "06:00"),
			}},
			wantField: "sessions[0].startTime",
		},
		{
			name: "empty label",
			patch: map[string]any{"sessions": []any{
				validSession("a", "  ", "AM", "06:00", "07:00"),
			}},
			wantField: "sessions[0].label",
		},
		{
			name:      "days too high",
			patch:     map[string]any{"daysToDisplay": float64(15)},
			wantField: "daysToDisplay",
		},
		{
			name:      "days zero",
			patch:     map[string]any{"daysToDisplay": float64(0)},
			wantField: "daysToDisplay",
		},
		{
			name:      "refresh below minimum",
			patch:     map[string]any{"refreshIntervalMs": float64(59999)},
			wantField: "refreshIntervalMs",
		},
		{
			name:      "refresh not integer",
			patch:     map[string]any{"refreshIntervalMs": "60000"},
			wantField: "refreshIntervalMs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateDisplayPatch(tt.patch)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Errorf("ValidateDisplayPatch() = %v, want no errors", errs)
				}
				return
			}
			for _, e := range errs {
				if e.Field == tt.wantField {
					return
				}
			}
			t.Errorf("ValidateDisplayPatch() = %v, want error on field %q", errs, tt.wantField)
		})
	}
}
