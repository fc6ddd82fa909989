// Package soe defines the sequence-of-events callback surface a protocol
// engine drives, and the demultiplexer that flattens its typed collections.
package soe

import "avaneesh/dnp3-cache/pkg/types"

// Handler processes measurement data delivered by a protocol engine.
// Implementations must return quickly and must not panic back into the engine.
type Handler interface {
	OnBeginFragment(info ResponseInfo)
	OnEndFragment(info ResponseInfo)

	Process(info HeaderInfo, values Collection)
}

// ResponseInfo contains information about a response fragment
type ResponseInfo struct {
	Unsolicited bool
	FIR         bool
	FIN         bool
	IIN         types.IIN
}

// HeaderInfo contains information about an object header
type HeaderInfo struct {
	PointType   types.PointTypeID
	Qualifier   uint8
	IsEvent     bool
	Unsolicited bool
}

// Collection is a type-erased block of indexed values of one point kind.
// It is implemented only by the collection types in this package.
type Collection interface {
	Kind() types.PointKind
	Len() int
	collection()
}

// BinaryCollection carries binary inputs
type BinaryCollection []types.IndexedBinary

// DoubleBitBinaryCollection carries double-bit binary inputs
type DoubleBitBinaryCollection []types.IndexedDoubleBitBinary

// AnalogCollection carries analog inputs
type AnalogCollection []types.IndexedAnalog

// CounterCollection carries counters
type CounterCollection []types.IndexedCounter

// FrozenCounterCollection carries frozen counters
type FrozenCounterCollection []types.IndexedFrozenCounter

// BinaryOutputStatusCollection carries binary output statuses
type BinaryOutputStatusCollection []types.IndexedBinaryOutputStatus

// AnalogOutputStatusCollection carries analog output statuses
type AnalogOutputStatusCollection []types.IndexedAnalogOutputStatus

// TimeAndIntervalCollection carries time-and-interval objects
type TimeAndIntervalCollection []types.IndexedTimeAndInterval

func (BinaryCollection) Kind() types.PointKind             { return types.KindBinary }
func (DoubleBitBinaryCollection) Kind() types.PointKind    { return types.KindDoubleBitBinary }
func (AnalogCollection) Kind() types.PointKind             { return types.KindAnalog }
func (CounterCollection) Kind() types.PointKind            { return types.KindCounter }
func (FrozenCounterCollection) Kind() types.PointKind      { return types.KindFrozenCounter }
func (BinaryOutputStatusCollection) Kind() types.PointKind { return types.KindBinaryOutputStatus }
func (AnalogOutputStatusCollection) Kind() types.PointKind { return types.KindAnalogOutputStatus }
func (TimeAndIntervalCollection) Kind() types.PointKind    { return types.KindTimeAndInterval }

func (c BinaryCollection) Len() int             { return len(c) }
func (c DoubleBitBinaryCollection) Len() int    { return len(c) }
func (c AnalogCollection) Len() int             { return len(c) }
func (c CounterCollection) Len() int            { return len(c) }
func (c FrozenCounterCollection) Len() int      { return len(c) }
func (c BinaryOutputStatusCollection) Len() int { return len(c) }
func (c AnalogOutputStatusCollection) Len() int { return len(c) }
func (c TimeAndIntervalCollection) Len() int    { return len(c) }

func (BinaryCollection) collection()             {}
func (DoubleBitBinaryCollection) collection()    {}
func (AnalogCollection) collection()             {}
func (CounterCollection) collection()            {}
func (FrozenCounterCollection) collection()      {}
func (BinaryOutputStatusCollection) collection() {}
func (AnalogOutputStatusCollection) collection() {}
func (TimeAndIntervalCollection) collection()    {}
