package simulator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"avaneesh/dnp3-cache/pkg/soe"
	"avaneesh/dnp3-cache/pkg/types"
)

// ErrInvalidValue is returned when a value does not fit the point kind
var ErrInvalidValue = errors.New("invalid value for point")

// Database stores the simulated outstation's current point values
type Database struct {
	binary        map[uint16]types.Binary
	doubleBit     map[uint16]types.DoubleBitBinary
	analog        map[uint16]types.Analog
	counter       map[uint16]types.Counter
	frozenCounter map[uint16]types.FrozenCounter
	binaryOutput  map[uint16]types.BinaryOutputStatus
	analogOutput  map[uint16]types.AnalogOutputStatus
	timeInterval  map[uint16]types.TimeAndInterval

	now func() time.Time
	mu  sync.RWMutex
}

// NewDatabase creates an empty database
func NewDatabase() *Database {
	return &Database{
		binary:        make(map[uint16]types.Binary),
		doubleBit:     make(map[uint16]types.DoubleBitBinary),
		analog:        make(map[uint16]types.Analog),
		counter:       make(map[uint16]types.Counter),
		frozenCounter: make(map[uint16]types.FrozenCounter),
		binaryOutput:  make(map[uint16]types.BinaryOutputStatus),
		analogOutput:  make(map[uint16]types.AnalogOutputStatus),
		timeInterval:  make(map[uint16]types.TimeAndInterval),
		now:           time.Now,
	}
}

// Update sets one point of the kind gv is reported in
func (db *Database) Update(gv types.GroupVariation, index uint16, v types.PointValue) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	flags := types.FlagOnline
	ts := types.FromTime(db.now())

	switch gv.Kind() {
	case types.KindBinary:
		b, ok := v.Bool()
		if !ok {
			return invalid(gv, v)
		}
		db.binary[index] = types.Binary{Value: b, Flags: flags, Time: ts}
	case types.KindBinaryOutputStatus:
		b, ok := v.Bool()
		if !ok {
			return invalid(gv, v)
		}
		db.binaryOutput[index] = types.BinaryOutputStatus{Value: b, Flags: flags, Time: ts}
	case types.KindDoubleBitBinary:
		i, ok := v.Int()
		if !ok || i < 0 || i > int64(types.DoubleBitIndeterminate) {
			return invalid(gv, v)
		}
		db.doubleBit[index] = types.DoubleBitBinary{Value: types.DoubleBitValue(i), Flags: flags, Time: ts}
	case types.KindAnalog:
		f, ok := v.AsFloat64()
		if !ok {
			return invalid(gv, v)
		}
		db.analog[index] = types.Analog{Value: f, Flags: flags, Time: ts}
	case types.KindAnalogOutputStatus:
		f, ok := v.AsFloat64()
		if !ok {
			return invalid(gv, v)
		}
		db.analogOutput[index] = types.AnalogOutputStatus{Value: f, Flags: flags, Time: ts}
	case types.KindCounter:
		c, err := counterValue(gv, v)
		if err != nil {
			return err
		}
		db.counter[index] = types.Counter{Value: c, Flags: flags, Time: ts}
	case types.KindFrozenCounter:
		c, err := counterValue(gv, v)
		if err != nil {
			return err
		}
		db.frozenCounter[index] = types.FrozenCounter{Value: c, Flags: flags, Time: ts}
	case types.KindTimeAndInterval:
		i, ok := v.Int()
		if !ok || i < 0 {
			return invalid(gv, v)
		}
		db.timeInterval[index] = types.TimeAndInterval{Time: types.DNP3Time(i), Units: types.IntervalUnitsNoRepeat}
	default:
		return fmt.Errorf("%w: %v", types.ErrUnknownPointType, gv)
	}
	return nil
}

func invalid(gv types.GroupVariation, v types.PointValue) error {
	return fmt.Errorf("%w: %v cannot hold %v value %v", ErrInvalidValue, gv, v.Kind(), v)
}

func counterValue(gv types.GroupVariation, v types.PointValue) (uint32, error) {
	i, ok := v.Int()
	if !ok || i < 0 || i > math.MaxUint32 {
		return 0, invalid(gv, v)
	}
	return uint32(i), nil
}

// Collection returns every point of gv's kind, ordered by index.
// It returns nil when the database holds no such points.
func (db *Database) Collection(gv types.GroupVariation) soe.Collection {
	db.mu.RLock()
	defer db.mu.RUnlock()

	switch gv.Kind() {
	case types.KindBinary:
		if len(db.binary) == 0 {
			return nil
		}
		out := make(soe.BinaryCollection, 0, len(db.binary))
		for _, i := range sortedKeys(db.binary) {
			out = append(out, types.IndexedBinary{Index: i, Value: db.binary[i]})
		}
		return out
	case types.KindDoubleBitBinary:
		if len(db.doubleBit) == 0 {
			return nil
		}
		out := make(soe.DoubleBitBinaryCollection, 0, len(db.doubleBit))
		for _, i := range sortedKeys(db.doubleBit) {
			out = append(out, types.IndexedDoubleBitBinary{Index: i, Value: db.doubleBit[i]})
		}
		return out
	case types.KindAnalog:
		if len(db.analog) == 0 {
			return nil
		}
		out := make(soe.AnalogCollection, 0, len(db.analog))
		for _, i := range sortedKeys(db.analog) {
			out = append(out, types.IndexedAnalog{Index: i, Value: db.analog[i]})
		}
		return out
	case types.KindCounter:
		if len(db.counter) == 0 {
			return nil
		}
		out := make(soe.CounterCollection, 0, len(db.counter))
		for _, i := range sortedKeys(db.counter) {
			out = append(out, types.IndexedCounter{Index: i, Value: db.counter[i]})
		}
		return out
	case types.KindFrozenCounter:
		if len(db.frozenCounter) == 0 {
			return nil
		}
		out := make(soe.FrozenCounterCollection, 0, len(db.frozenCounter))
		for _, i := range sortedKeys(db.frozenCounter) {
			out = append(out, types.IndexedFrozenCounter{Index: i, Value: db.frozenCounter[i]})
		}
		return out
	case types.KindBinaryOutputStatus:
		if len(db.binaryOutput) == 0 {
			return nil
		}
		out := make(soe.BinaryOutputStatusCollection, 0, len(db.binaryOutput))
		for _, i := range sortedKeys(db.binaryOutput) {
			out = append(out, types.IndexedBinaryOutputStatus{Index: i, Value: db.binaryOutput[i]})
		}
		return out
	case types.KindAnalogOutputStatus:
		if len(db.analogOutput) == 0 {
			return nil
		}
		out := make(soe.AnalogOutputStatusCollection, 0, len(db.analogOutput))
		for _, i := range sortedKeys(db.analogOutput) {
			out = append(out, types.IndexedAnalogOutputStatus{Index: i, Value: db.analogOutput[i]})
		}
		return out
	case types.KindTimeAndInterval:
		if len(db.timeInterval) == 0 {
			return nil
		}
		out := make(soe.TimeAndIntervalCollection, 0, len(db.timeInterval))
		for _, i := range sortedKeys(db.timeInterval) {
			out = append(out, types.IndexedTimeAndInterval{Index: i, Value: db.timeInterval[i]})
		}
		return out
	default:
		return nil
	}
}

// Select checks that cmd could be executed without changing anything
func (db *Database) Select(cmd types.ControlCommand, index uint16) types.CommandStatus {
	db.mu.RLock()
	defer db.mu.RUnlock()
	status, _ := db.target(cmd, index)
	return status
}

// ApplyCommand executes a control command against an output point
func (db *Database) ApplyCommand(cmd types.ControlCommand, index uint16) types.CommandStatus {
	db.mu.Lock()
	defer db.mu.Unlock()

	status, v := db.target(cmd, index)
	if !status.IsSuccess() {
		return status
	}

	ts := types.FromTime(db.now())
	switch b := v.(type) {
	case bool:
		db.binaryOutput[index] = types.BinaryOutputStatus{Value: b, Flags: types.FlagOnline, Time: ts}
	case float64:
		db.analogOutput[index] = types.AnalogOutputStatus{Value: b, Flags: types.FlagOnline, Time: ts}
	}
	return status
}

// target validates cmd against the addressed point and returns the value
// the point would take.
func (db *Database) target(cmd types.ControlCommand, index uint16) (types.CommandStatus, any) {
	switch c := cmd.(type) {
	case types.CROB:
		if _, ok := db.binaryOutput[index]; !ok {
			return types.CommandStatusNotSupported, nil
		}
		switch c.OpType {
		case types.ControlCodeLatchOn:
			return types.CommandStatusSuccess, true
		case types.ControlCodeLatchOff:
			return types.CommandStatusSuccess, false
		default:
			return types.CommandStatusNotSupported, nil
		}
	case types.AnalogOutputInt32:
		return db.analogTarget(index, float64(c.Value))
	case types.AnalogOutputInt16:
		return db.analogTarget(index, float64(c.Value))
	case types.AnalogOutputFloat32:
		return db.analogTarget(index, float64(c.Value))
	case types.AnalogOutputDouble64:
		return db.analogTarget(index, c.Value)
	default:
		return types.CommandStatusFormatError, nil
	}
}

func (db *Database) analogTarget(index uint16, v float64) (types.CommandStatus, any) {
	if _, ok := db.analogOutput[index]; !ok {
		return types.CommandStatusNotSupported, nil
	}
	return types.CommandStatusSuccess, v
}

func sortedKeys[V any](m map[uint16]V) []uint16 {
	keys := make([]uint16, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
