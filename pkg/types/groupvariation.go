package types

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownPointType is returned when a (group, variation) pair is not supported
var ErrUnknownPointType = errors.New("unknown point type")

// PointTypeID identifies a class of point by its DNP3 group and variation
type PointTypeID struct {
	Group     uint16
	Variation uint16
}

// String returns the short "G30V6" form
func (id PointTypeID) String() string {
	return fmt.Sprintf("G%dV%d", id.Group, id.Variation)
}

// PointKind identifies the collection a point type is reported in
type PointKind uint8

const (
	KindBinary PointKind = iota
	KindDoubleBitBinary
	KindAnalog
	KindCounter
	KindFrozenCounter
	KindBinaryOutputStatus
	KindAnalogOutputStatus
	KindTimeAndInterval
)

var pointKindNames = [...]string{
	KindBinary:             "Binary",
	KindDoubleBitBinary:    "DoubleBitBinary",
	KindAnalog:             "Analog",
	KindCounter:            "Counter",
	KindFrozenCounter:      "FrozenCounter",
	KindBinaryOutputStatus: "BinaryOutputStatus",
	KindAnalogOutputStatus: "AnalogOutputStatus",
	KindTimeAndInterval:    "TimeAndInterval",
}

// String returns string representation of PointKind
func (k PointKind) String() string {
	if int(k) < len(pointKindNames) {
		return pointKindNames[k]
	}
	return "Unknown"
}

// GroupVariation is the canonical enumerated point type.
// The value packs the group in the high byte and the variation in the low byte.
type GroupVariation uint16

const (
	Group1Var0 GroupVariation = 1<<8 | 0 // Binary input - any variation
	Group1Var1 GroupVariation = 1<<8 | 1 // Binary input - packed format
	Group1Var2 GroupVariation = 1<<8 | 2 // Binary input - with flags

	Group2Var0 GroupVariation = 2<<8 | 0 // Binary input event - any variation
	Group2Var1 GroupVariation = 2<<8 | 1 // Binary input event - without time
	Group2Var2 GroupVariation = 2<<8 | 2 // Binary input event - with absolute time
	Group2Var3 GroupVariation = 2<<8 | 3 // Binary input event - with relative time

	Group3Var0 GroupVariation = 3<<8 | 0 // Double-bit binary input - any variation
	Group3Var1 GroupVariation = 3<<8 | 1 // Double-bit binary input - packed format
	Group3Var2 GroupVariation = 3<<8 | 2 // Double-bit binary input - with flags

	Group4Var0 GroupVariation = 4<<8 | 0 // Double-bit binary input event - any variation
	Group4Var1 GroupVariation = 4<<8 | 1 // Double-bit binary input event - without time
	Group4Var2 GroupVariation = 4<<8 | 2 // Double-bit binary input event - with absolute time
	Group4Var3 GroupVariation = 4<<8 | 3 // Double-bit binary input event - with relative time

	Group10Var0 GroupVariation = 10<<8 | 0 // Binary output - any variation
	Group10Var1 GroupVariation = 10<<8 | 1 // Binary output - packed format
	Group10Var2 GroupVariation = 10<<8 | 2 // Binary output - output status with flags

	Group11Var0 GroupVariation = 11<<8 | 0 // Binary output event - any variation
	Group11Var1 GroupVariation = 11<<8 | 1 // Binary output event - status without time
	Group11Var2 GroupVariation = 11<<8 | 2 // Binary output event - status with time

	Group20Var0 GroupVariation = 20<<8 | 0 // Counter - any variation
	Group20Var1 GroupVariation = 20<<8 | 1 // Counter - 32-bit with flag
	Group20Var2 GroupVariation = 20<<8 | 2 // Counter - 16-bit with flag

	Group21Var0 GroupVariation = 21<<8 | 0 // Frozen counter - any variation
	Group21Var1 GroupVariation = 21<<8 | 1 // Frozen counter - 32-bit with flag
	Group21Var2 GroupVariation = 21<<8 | 2 // Frozen counter - 16-bit with flag

	Group22Var0 GroupVariation = 22<<8 | 0 // Counter event - any variation
	Group22Var1 GroupVariation = 22<<8 | 1 // Counter event - 32-bit with flag
	Group22Var2 GroupVariation = 22<<8 | 2 // Counter event - 16-bit with flag

	Group23Var0 GroupVariation = 23<<8 | 0 // Frozen counter event - any variation
	Group23Var1 GroupVariation = 23<<8 | 1 // Frozen counter event - 32-bit with flag
	Group23Var2 GroupVariation = 23<<8 | 2 // Frozen counter event - 16-bit with flag

	Group30Var0 GroupVariation = 30<<8 | 0 // Analog input - any variation
	Group30Var1 GroupVariation = 30<<8 | 1 // Analog input - 32-bit with flag
	Group30Var2 GroupVariation = 30<<8 | 2 // Analog input - 16-bit with flag
	Group30Var3 GroupVariation = 30<<8 | 3 // Analog input - 32-bit without flag
	Group30Var4 GroupVariation = 30<<8 | 4 // Analog input - 16-bit without flag
	Group30Var5 GroupVariation = 30<<8 | 5 // Analog input - single-precision with flag
	Group30Var6 GroupVariation = 30<<8 | 6 // Analog input - double-precision with flag

	Group32Var0 GroupVariation = 32<<8 | 0 // Analog input event - any variation
	Group32Var1 GroupVariation = 32<<8 | 1 // Analog input event - 32-bit without time
	Group32Var2 GroupVariation = 32<<8 | 2 // Analog input event - 16-bit without time
	Group32Var3 GroupVariation = 32<<8 | 3 // Analog input event - 32-bit with time
	Group32Var4 GroupVariation = 32<<8 | 4 // Analog input event - 16-bit with time
	Group32Var5 GroupVariation = 32<<8 | 5 // Analog input event - single-precision without time
	Group32Var6 GroupVariation = 32<<8 | 6 // Analog input event - double-precision without time
	Group32Var7 GroupVariation = 32<<8 | 7 // Analog input event - single-precision with time
	Group32Var8 GroupVariation = 32<<8 | 8 // Analog input event - double-precision with time

	Group40Var0 GroupVariation = 40<<8 | 0 // Analog output status - any variation
	Group40Var1 GroupVariation = 40<<8 | 1 // Analog output status - 32-bit with flag
	Group40Var2 GroupVariation = 40<<8 | 2 // Analog output status - 16-bit with flag
	Group40Var3 GroupVariation = 40<<8 | 3 // Analog output status - single-precision with flag
	Group40Var4 GroupVariation = 40<<8 | 4 // Analog output status - double-precision with flag

	Group42Var0 GroupVariation = 42<<8 | 0 // Analog output event - any variation
	Group42Var1 GroupVariation = 42<<8 | 1 // Analog output event - 32-bit without time
	Group42Var2 GroupVariation = 42<<8 | 2 // Analog output event - 16-bit without time
	Group42Var3 GroupVariation = 42<<8 | 3 // Analog output event - 32-bit with time
	Group42Var4 GroupVariation = 42<<8 | 4 // Analog output event - 16-bit with time
	Group42Var5 GroupVariation = 42<<8 | 5 // Analog output event - single-precision without time
	Group42Var6 GroupVariation = 42<<8 | 6 // Analog output event - double-precision without time
	Group42Var7 GroupVariation = 42<<8 | 7 // Analog output event - single-precision with time
	Group42Var8 GroupVariation = 42<<8 | 8 // Analog output event - double-precision with time

	Group50Var4 GroupVariation = 50<<8 | 4 // Time and interval - indexed absolute time and long interval
)

// groupKinds maps a group to the collection its objects are reported in
var groupKinds = map[uint16]PointKind{
	1:  KindBinary,
	2:  KindBinary,
	3:  KindDoubleBitBinary,
	4:  KindDoubleBitBinary,
	10: KindBinaryOutputStatus,
	11: KindBinaryOutputStatus,
	20: KindCounter,
	21: KindFrozenCounter,
	22: KindCounter,
	23: KindFrozenCounter,
	30: KindAnalog,
	32: KindAnalog,
	40: KindAnalogOutputStatus,
	42: KindAnalogOutputStatus,
	50: KindTimeAndInterval,
}

// supported is the closed set of resolvable point types
var supported = map[GroupVariation]struct{}{}

// integerValued lists the variations whose wire encoding is an integer
var integerValued = map[GroupVariation]bool{
	Group30Var1: true, Group30Var2: true, Group30Var3: true, Group30Var4: true,
	Group32Var1: true, Group32Var2: true, Group32Var3: true, Group32Var4: true,
	Group40Var1: true, Group40Var2: true,
	Group42Var1: true, Group42Var2: true, Group42Var3: true, Group42Var4: true,
}

func init() {
	for _, gv := range []GroupVariation{
		Group1Var0, Group1Var1, Group1Var2,
		Group2Var0, Group2Var1, Group2Var2, Group2Var3,
		Group3Var0, Group3Var1, Group3Var2,
		Group4Var0, Group4Var1, Group4Var2, Group4Var3,
		Group10Var0, Group10Var1, Group10Var2,
		Group11Var0, Group11Var1, Group11Var2,
		Group20Var0, Group20Var1, Group20Var2,
		Group21Var0, Group21Var1, Group21Var2,
		Group22Var0, Group22Var1, Group22Var2,
		Group23Var0, Group23Var1, Group23Var2,
		Group30Var0, Group30Var1, Group30Var2, Group30Var3, Group30Var4, Group30Var5, Group30Var6,
		Group32Var0, Group32Var1, Group32Var2, Group32Var3, Group32Var4,
		Group32Var5, Group32Var6, Group32Var7, Group32Var8,
		Group40Var0, Group40Var1, Group40Var2, Group40Var3, Group40Var4,
		Group42Var0, Group42Var1, Group42Var2, Group42Var3, Group42Var4,
		Group42Var5, Group42Var6, Group42Var7, Group42Var8,
		Group50Var4,
	} {
		supported[gv] = struct{}{}
	}
}

// ResolveGroupVariation maps a (group, variation) pair to its GroupVariation.
// Unsupported pairs return an error wrapping ErrUnknownPointType.
func ResolveGroupVariation(group, variation uint16) (GroupVariation, error) {
	if group > 0xFF || variation > 0xFF {
		return 0, fmt.Errorf("%w: G%dV%d", ErrUnknownPointType, group, variation)
	}
	gv := GroupVariation(group<<8 | variation)
	if _, ok := supported[gv]; !ok {
		return 0, fmt.Errorf("%w: G%dV%d", ErrUnknownPointType, group, variation)
	}
	return gv, nil
}

// Resolve maps a PointTypeID to its GroupVariation
func (id PointTypeID) Resolve() (GroupVariation, error) {
	return ResolveGroupVariation(id.Group, id.Variation)
}

// Group returns the DNP3 object group
func (gv GroupVariation) Group() uint16 {
	return uint16(gv >> 8)
}

// Variation returns the DNP3 object variation
func (gv GroupVariation) Variation() uint16 {
	return uint16(gv & 0xFF)
}

// ID returns the (group, variation) identifier
func (gv GroupVariation) ID() PointTypeID {
	return PointTypeID{Group: gv.Group(), Variation: gv.Variation()}
}

// String returns the canonical "Group30Var6" name
func (gv GroupVariation) String() string {
	return fmt.Sprintf("Group%dVar%d", gv.Group(), gv.Variation())
}

// Kind returns the collection type this point type is reported in
func (gv GroupVariation) Kind() PointKind {
	return groupKinds[gv.Group()]
}

// IntegerValued reports whether analog values of this variation carry
// integer precision on the wire.
func (gv GroupVariation) IntegerValued() bool {
	return integerValued[gv]
}

// IsEvent reports whether gv belongs to an event group
func (gv GroupVariation) IsEvent() bool {
	switch gv.Group() {
	case 2, 4, 11, 22, 23, 32, 42:
		return true
	}
	return false
}

// IsSupported reports whether gv is part of the supported set
func (gv GroupVariation) IsSupported() bool {
	_, ok := supported[gv]
	return ok
}

// SupportedGroupVariations returns all supported point types in ascending order
func SupportedGroupVariations() []GroupVariation {
	out := make([]GroupVariation, 0, len(supported))
	for gv := range supported {
		out = append(out, gv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
