// Package command converts between caller-facing point values, outbound
// control commands and the status values mirrored into the cache.
package command

import (
	"errors"
	"fmt"
	"math"

	"avaneesh/dnp3-cache/pkg/types"
)

var (
	ErrInvalidCommandCode      = errors.New("invalid command code")
	ErrUnsupportedCommandPoint = errors.New("point type does not accept commands")
	ErrInvalidCommandValue     = errors.New("invalid command value")
)

// ToStatusMirror maps a command to the status value its output point will
// report once the command is applied.
func ToStatusMirror(cmd types.ControlCommand) (types.StatusMirror, error) {
	switch c := cmd.(type) {
	case types.AnalogOutputInt32:
		return analogMirror(float64(c.Value)), nil
	case types.AnalogOutputInt16:
		return analogMirror(float64(c.Value)), nil
	case types.AnalogOutputFloat32:
		return analogMirror(float64(c.Value)), nil
	case types.AnalogOutputDouble64:
		return analogMirror(c.Value), nil
	case types.CROB:
		switch c.OpType {
		case types.ControlCodeLatchOn:
			return types.StatusMirror{Kind: types.KindBinaryOutputStatus, Value: types.BoolValue(true)}, nil
		case types.ControlCodeLatchOff:
			return types.StatusMirror{Kind: types.KindBinaryOutputStatus, Value: types.BoolValue(false)}, nil
		default:
			return types.StatusMirror{}, fmt.Errorf("%w: 0x%02X (want 0x03 on, 0x04 off)", ErrInvalidCommandCode, uint8(c.OpType))
		}
	default:
		return types.StatusMirror{}, fmt.Errorf("%w: %T", ErrInvalidCommandValue, cmd)
	}
}

func analogMirror(v float64) types.StatusMirror {
	return types.StatusMirror{Kind: types.KindAnalogOutputStatus, Value: types.FloatValue(v)}
}

// FromPointValue builds the command that sets an output point of type gv to v.
// Group 40 variations select the analog output width; group 10 takes a bool
// and latches on or off.
func FromPointValue(gv types.GroupVariation, v types.PointValue) (types.ControlCommand, error) {
	switch gv {
	case types.Group40Var1:
		i, err := integral(gv, v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		return types.AnalogOutputInt32{Value: int32(i)}, nil
	case types.Group40Var2:
		i, err := integral(gv, v, math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		return types.AnalogOutputInt16{Value: int16(i)}, nil
	case types.Group40Var3:
		f, ok := v.AsFloat64()
		if !ok {
			return nil, fmt.Errorf("%w: %v needs a number, got %v", ErrInvalidCommandValue, gv, v.Kind())
		}
		if math.Abs(f) > math.MaxFloat32 {
			return nil, fmt.Errorf("%w: %v out of range for %v", ErrInvalidCommandValue, f, gv)
		}
		return types.AnalogOutputFloat32{Value: float32(f)}, nil
	case types.Group40Var4:
		f, ok := v.AsFloat64()
		if !ok {
			return nil, fmt.Errorf("%w: %v needs a number, got %v", ErrInvalidCommandValue, gv, v.Kind())
		}
		return types.AnalogOutputDouble64{Value: f}, nil
	case types.Group10Var1, types.Group10Var2:
		b, ok := v.Bool()
		if !ok {
			return nil, fmt.Errorf("%w: %v needs a bool, got %v", ErrInvalidCommandValue, gv, v.Kind())
		}
		code := types.ControlCodeLatchOff
		if b {
			code = types.ControlCodeLatchOn
		}
		return types.CROB{OpType: code, Count: 1}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCommandPoint, gv)
	}
}

func integral(gv types.GroupVariation, v types.PointValue, min, max int64) (int64, error) {
	if i, ok := v.Int(); ok {
		if i < min || i > max {
			return 0, fmt.Errorf("%w: %d out of range for %v", ErrInvalidCommandValue, i, gv)
		}
		return i, nil
	}
	f, ok := v.Float()
	if !ok {
		return 0, fmt.Errorf("%w: %v needs a number, got %v", ErrInvalidCommandValue, gv, v.Kind())
	}
	if f != math.Trunc(f) || f < float64(min) || f > float64(max) {
		return 0, fmt.Errorf("%w: %v is not a %v integer", ErrInvalidCommandValue, f, gv)
	}
	return int64(f), nil
}
