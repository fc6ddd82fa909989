package soe

import (
	"errors"
	"fmt"
	"math"

	"avaneesh/dnp3-cache/pkg/types"
)

// ErrUnsupportedCollectionType is returned for a collection with no demultiplexer
var ErrUnsupportedCollectionType = errors.New("unsupported collection type")

// Demultiplex flattens a delivered collection into an index/value map.
// Analog values are coerced to integers when gv is an integer-valued variation.
func Demultiplex(gv types.GroupVariation, values Collection) (types.IndexValueMap, error) {
	if values == nil {
		return nil, fmt.Errorf("%w: nil collection for %v", ErrUnsupportedCollectionType, gv)
	}

	if values.Kind() != gv.Kind() {
		return nil, fmt.Errorf("%w: %v collection for %v", ErrUnsupportedCollectionType, values.Kind(), gv)
	}

	integer := gv.IntegerValued()
	out := make(types.IndexValueMap, values.Len())

	switch c := values.(type) {
	case BinaryCollection:
		for _, v := range c {
			out[v.Index] = types.BoolValue(v.Value.Value)
		}
	case DoubleBitBinaryCollection:
		for _, v := range c {
			out[v.Index] = types.IntValue(int64(v.Value.Value))
		}
	case AnalogCollection:
		for _, v := range c {
			out[v.Index] = AnalogValue(v.Value.Value, integer)
		}
	case CounterCollection:
		for _, v := range c {
			out[v.Index] = types.IntValue(int64(v.Value.Value))
		}
	case FrozenCounterCollection:
		for _, v := range c {
			out[v.Index] = types.IntValue(int64(v.Value.Value))
		}
	case BinaryOutputStatusCollection:
		for _, v := range c {
			out[v.Index] = types.BoolValue(v.Value.Value)
		}
	case AnalogOutputStatusCollection:
		for _, v := range c {
			out[v.Index] = AnalogValue(v.Value.Value, integer)
		}
	case TimeAndIntervalCollection:
		for _, v := range c {
			out[v.Index] = types.IntValue(int64(v.Value.Time))
		}
	default:
		return nil, fmt.Errorf("%w: %T for %v", ErrUnsupportedCollectionType, values, gv)
	}

	return out, nil
}

// AnalogValue converts an analog reading to its stored representation
func AnalogValue(v float64, integer bool) types.PointValue {
	if integer {
		return types.IntValue(int64(math.Round(v)))
	}
	return types.FloatValue(v)
}
