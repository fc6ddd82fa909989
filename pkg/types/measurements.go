package types

// Flags is the quality octet reported with a measurement
type Flags uint8

const (
	FlagOnline   Flags = 0x01 // Point is online
	FlagRestart  Flags = 0x02 // Device restart detected
	FlagCommLost Flags = 0x04 // Communication lost
)

// IsOnline reports the ONLINE bit
func (f Flags) IsOnline() bool {
	return f&FlagOnline != 0
}

// HasCommLost reports the COMM_LOST bit
func (f Flags) HasCommLost() bool {
	return f&FlagCommLost != 0
}

// Binary is a group 1/2 input state
type Binary struct {
	Value bool
	Flags Flags
	Time  DNP3Time
}

// DoubleBitValue is the two-bit state code of a group 3/4 input
type DoubleBitValue uint8

const (
	DoubleBitIntermediate  DoubleBitValue = 0
	DoubleBitOff           DoubleBitValue = 1
	DoubleBitOn            DoubleBitValue = 2
	DoubleBitIndeterminate DoubleBitValue = 3
)

// DoubleBitBinary is a group 3/4 input; stored in the cache as its state code
type DoubleBitBinary struct {
	Value DoubleBitValue
	Flags Flags
	Time  DNP3Time
}

// Analog is a group 30/32 input. Integer variations arrive widened to
// float64 and are narrowed again on ingestion.
type Analog struct {
	Value float64
	Flags Flags
	Time  DNP3Time
}

// Counter is a group 20/22 running counter
type Counter struct {
	Value uint32
	Flags Flags
	Time  DNP3Time
}

// FrozenCounter is a group 21/23 frozen counter
type FrozenCounter struct {
	Value uint32
	Flags Flags
	Time  DNP3Time
}

// BinaryOutputStatus is the group 10/11 state of a relay output
type BinaryOutputStatus struct {
	Value bool
	Flags Flags
	Time  DNP3Time
}

// AnalogOutputStatus is the group 40/42 state of a setpoint
type AnalogOutputStatus struct {
	Value float64
	Flags Flags
	Time  DNP3Time
}

// IntervalUnits is the unit of a TimeAndInterval repeat
type IntervalUnits uint8

const (
	IntervalUnitsNoRepeat     IntervalUnits = 0
	IntervalUnitsMilliseconds IntervalUnits = 1
	IntervalUnitsSeconds      IntervalUnits = 2
	IntervalUnitsMinutes      IntervalUnits = 3
)

// TimeAndInterval is a group 50 var 4 schedule entry
type TimeAndInterval struct {
	Time     DNP3Time
	Interval uint32
	Units    IntervalUnits
}

// Indexed pairs a measurement with its point index, the unit of every
// collection delivered to a handler
type Indexed[T any] struct {
	Index uint16
	Value T
}

type (
	IndexedBinary             = Indexed[Binary]
	IndexedDoubleBitBinary    = Indexed[DoubleBitBinary]
	IndexedAnalog             = Indexed[Analog]
	IndexedCounter            = Indexed[Counter]
	IndexedFrozenCounter      = Indexed[FrozenCounter]
	IndexedBinaryOutputStatus = Indexed[BinaryOutputStatus]
	IndexedAnalogOutputStatus = Indexed[AnalogOutputStatus]
	IndexedTimeAndInterval    = Indexed[TimeAndInterval]
)
