package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueKind identifies which member of a PointValue is set
type ValueKind uint8

const (
	ValueAbsent ValueKind = iota
	ValueFloat
	ValueInt
	ValueBool
)

// String returns string representation of ValueKind
func (k ValueKind) String() string {
	switch k {
	case ValueAbsent:
		return "absent"
	case ValueFloat:
		return "float"
	case ValueInt:
		return "int"
	case ValueBool:
		return "bool"
	default:
		return "unknown"
	}
}

// PointValue is a reported point value. The zero value is absent,
// which is distinct from a reported 0 or false.
type PointValue struct {
	kind ValueKind
	f    float64
	i    int64
	b    bool
}

// Absent returns a value meaning "not reported"
func Absent() PointValue {
	return PointValue{}
}

// FloatValue wraps a floating-point reading
func FloatValue(v float64) PointValue {
	return PointValue{kind: ValueFloat, f: v}
}

// IntValue wraps an integer reading
func IntValue(v int64) PointValue {
	return PointValue{kind: ValueInt, i: v}
}

// BoolValue wraps a binary reading
func BoolValue(v bool) PointValue {
	return PointValue{kind: ValueBool, b: v}
}

// Kind returns which member is set
func (v PointValue) Kind() ValueKind {
	return v.kind
}

// IsAbsent reports whether no value was reported
func (v PointValue) IsAbsent() bool {
	return v.kind == ValueAbsent
}

// Float returns the float member
func (v PointValue) Float() (float64, bool) {
	return v.f, v.kind == ValueFloat
}

// Int returns the integer member
func (v PointValue) Int() (int64, bool) {
	return v.i, v.kind == ValueInt
}

// Bool returns the boolean member
func (v PointValue) Bool() (bool, bool) {
	return v.b, v.kind == ValueBool
}

// AsFloat64 widens a numeric value to float64.
// Booleans and absent values are not numeric.
func (v PointValue) AsFloat64() (float64, bool) {
	switch v.kind {
	case ValueFloat:
		return v.f, true
	case ValueInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Interface returns the value as float64, int64, bool or nil
func (v PointValue) Interface() interface{} {
	switch v.kind {
	case ValueFloat:
		return v.f
	case ValueInt:
		return v.i
	case ValueBool:
		return v.b
	default:
		return nil
	}
}

// String returns string representation of PointValue
func (v PointValue) String() string {
	switch v.kind {
	case ValueFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueBool:
		return strconv.FormatBool(v.b)
	default:
		return "<absent>"
	}
}

// MarshalJSON encodes absent as null. NaN and infinite floats, which JSON
// numbers cannot carry, are encoded as the strings "NaN", "+Inf" and "-Inf".
func (v PointValue) MarshalJSON() ([]byte, error) {
	if v.kind == ValueFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return json.Marshal(nonFiniteName(v.f))
	}
	return json.Marshal(v.Interface())
}

func nonFiniteName(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return "NaN"
	}
}

// UnmarshalJSON decodes null, booleans and numbers. Numbers written
// without a fraction or exponent decode as integers.
func (v *PointValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Absent()
	case bool:
		*v = BoolValue(x)
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := x.Int64(); err == nil {
				*v = IntValue(i)
				return nil
			}
		}
		f, err := x.Float64()
		if err != nil {
			return fmt.Errorf("invalid point value %s: %w", s, err)
		}
		*v = FloatValue(f)
	case string:
		switch x {
		case "NaN":
			*v = FloatValue(math.NaN())
		case "+Inf":
			*v = FloatValue(math.Inf(1))
		case "-Inf":
			*v = FloatValue(math.Inf(-1))
		default:
			return fmt.Errorf("invalid point value %s", string(data))
		}
	default:
		return fmt.Errorf("invalid point value %s", string(data))
	}
	return nil
}

// IndexValueMap maps point indices to their values
type IndexValueMap map[uint16]PointValue

// Get returns the value at index, or absent
func (m IndexValueMap) Get(index uint16) PointValue {
	if v, ok := m[index]; ok {
		return v
	}
	return Absent()
}

// Indices returns the indices in ascending order
func (m IndexValueMap) Indices() []uint16 {
	out := make([]uint16, 0, len(m))
	for i := range m {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Clone returns a copy safe to hand out of a lock
func (m IndexValueMap) Clone() IndexValueMap {
	out := make(IndexValueMap, len(m))
	for i, v := range m {
		out[i] = v
	}
	return out
}

// Merge writes every entry of other into m, leaving other indices untouched
func (m IndexValueMap) Merge(other IndexValueMap) {
	for i, v := range other {
		m[i] = v
	}
}
