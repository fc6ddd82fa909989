package types

import (
	"encoding/json"
	"math"
	"testing"
)

// TestPointValue_AbsentIsNotZero tests that a reported zero is distinct from no report
func TestPointValue_AbsentIsNotZero(t *testing.T) {
	var zero PointValue
	if !zero.IsAbsent() {
		t.Fatalf("zero PointValue should be absent")
	}

	tests := []struct {
		name string
		v    PointValue
	}{
		{"Float zero", FloatValue(0)},
		{"Int zero", IntValue(0)},
		{"Bool false", BoolValue(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.v.IsAbsent() {
				t.Errorf("%s reported as absent", tt.name)
			}
			if tt.v == Absent() {
				t.Errorf("%s compares equal to Absent()", tt.name)
			}
		})
	}
}

func TestPointValue_AsFloat64(t *testing.T) {
	tests := []struct {
		name   string
		v      PointValue
		want   float64
		wantOK bool
	}{
		{"Float", FloatValue(1.5), 1.5, true},
		{"Int", IntValue(-7), -7, true},
		{"Bool", BoolValue(true), 0, false},
		{"Absent", Absent(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.v.AsFloat64()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("AsFloat64: got (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// TestPointValue_JSON tests JSON encoding and decoding of each member
func TestPointValue_JSON(t *testing.T) {
	tests := []struct {
		name string
		v    PointValue
		json string
	}{
		{"Absent", Absent(), "null"},
		{"Float", FloatValue(2.25), "2.25"},
		{"Int", IntValue(42), "42"},
		{"Bool", BoolValue(true), "true"},
		{"Positive infinity", FloatValue(math.Inf(1)), `"+Inf"`},
		{"Negative infinity", FloatValue(math.Inf(-1)), `"-Inf"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.json {
				t.Errorf("marshal: got %s, want %s", data, tt.json)
			}

			var got PointValue
			if err := json.Unmarshal([]byte(tt.json), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tt.v {
				t.Errorf("unmarshal: got %v (%v), want %v (%v)", got, got.Kind(), tt.v, tt.v.Kind())
			}
		})
	}

	var f PointValue
	if err := json.Unmarshal([]byte("3.0"), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Kind() != ValueFloat {
		t.Errorf("3.0 should decode as float, got %v", f.Kind())
	}

	var bad PointValue
	if err := json.Unmarshal([]byte(`"on"`), &bad); err == nil {
		t.Errorf("expected error for string value")
	}
}

// TestPointValue_JSONNaN tests that a NaN reading keeps its map encodable
func TestPointValue_JSONNaN(t *testing.T) {
	data, err := json.Marshal(IndexValueMap{0: FloatValue(math.NaN()), 1: FloatValue(1)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"0":"NaN","1":1}` {
		t.Errorf("marshal: got %s", data)
	}

	var got IndexValueMap
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	f, ok := got.Get(0).Float()
	if !ok || !math.IsNaN(f) {
		t.Errorf("index 0: got %v (%v), want NaN", got.Get(0), got.Get(0).Kind())
	}
	if got.Get(1) != IntValue(1) {
		t.Errorf("index 1: got %v", got.Get(1))
	}
}

// TestIndexValueMap_Merge tests that a partial update does not erase other indices
func TestIndexValueMap_Merge(t *testing.T) {
	m := IndexValueMap{0: FloatValue(1.0)}
	m.Merge(IndexValueMap{1: FloatValue(2.0)})

	if len(m) != 2 {
		t.Fatalf("len: got %d, want 2", len(m))
	}
	if m.Get(0) != FloatValue(1.0) || m.Get(1) != FloatValue(2.0) {
		t.Errorf("merge: got %v", m)
	}

	m.Merge(IndexValueMap{0: FloatValue(3.0)})
	if m.Get(0) != FloatValue(3.0) {
		t.Errorf("overwrite: got %v, want 3", m.Get(0))
	}
	if !m.Get(9).IsAbsent() {
		t.Errorf("missing index should be absent")
	}
}

func TestIndexValueMap_IndicesAndClone(t *testing.T) {
	m := IndexValueMap{5: IntValue(1), 1: IntValue(2), 3: IntValue(3)}
	idx := m.Indices()
	want := []uint16{1, 3, 5}
	for i := range want {
		if idx[i] != want[i] {
			t.Fatalf("Indices: got %v, want %v", idx, want)
		}
	}

	c := m.Clone()
	c[7] = BoolValue(true)
	if _, ok := m[7]; ok {
		t.Errorf("Clone shares storage with original")
	}
}
