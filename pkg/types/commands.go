package types

import "fmt"

// ControlCode defines DNP3 control operations for binary outputs
type ControlCode uint8

// DNP3 Control Code values
const (
	ControlCodeNUL      ControlCode = 0x00 // No operation
	ControlCodePulseOn  ControlCode = 0x01 // Pulse output on
	ControlCodePulseOff ControlCode = 0x02 // Pulse output off
	ControlCodeLatchOn  ControlCode = 0x03 // Latch output on
	ControlCodeLatchOff ControlCode = 0x04 // Latch output off
	ControlCodeCloseOn  ControlCode = 0x41 // Close on with pulse
	ControlCodeTripOff  ControlCode = 0x81 // Trip off with pulse
)

// CommandType identifies the type of command
type CommandType uint8

const (
	CommandTypeCROB CommandType = iota
	CommandTypeAnalogOutputInt32
	CommandTypeAnalogOutputInt16
	CommandTypeAnalogOutputFloat32
	CommandTypeAnalogOutputDouble64
)

var commandTypeNames = [...]string{
	CommandTypeCROB:                 "CROB",
	CommandTypeAnalogOutputInt32:    "AnalogOutputInt32",
	CommandTypeAnalogOutputInt16:    "AnalogOutputInt16",
	CommandTypeAnalogOutputFloat32:  "AnalogOutputFloat32",
	CommandTypeAnalogOutputDouble64: "AnalogOutputDouble64",
}

// String returns string representation of CommandType
func (t CommandType) String() string {
	if int(t) < len(commandTypeNames) {
		return commandTypeNames[t]
	}
	return fmt.Sprintf("CommandType(%d)", uint8(t))
}

// ControlCommand is an outbound command for a remote output point.
// Implemented only by the command types in this package.
type ControlCommand interface {
	Type() CommandType
	controlCommand()
}

// CROB (Control Relay Output Block) represents a binary control command
type CROB struct {
	OpType    ControlCode // Type of control operation
	Count     uint8       // Number of times to repeat operation
	OnTimeMs  uint32      // Time the output is on (milliseconds)
	OffTimeMs uint32      // Time between operations (milliseconds)
}

// AnalogOutputInt32 represents a 32-bit integer analog output command (G41V1)
type AnalogOutputInt32 struct {
	Value int32
}

// AnalogOutputInt16 represents a 16-bit integer analog output command (G41V2)
type AnalogOutputInt16 struct {
	Value int16
}

// AnalogOutputFloat32 represents a 32-bit float analog output command (G41V3)
type AnalogOutputFloat32 struct {
	Value float32
}

// AnalogOutputDouble64 represents a 64-bit float analog output command (G41V4)
type AnalogOutputDouble64 struct {
	Value float64
}

func (CROB) Type() CommandType                 { return CommandTypeCROB }
func (AnalogOutputInt32) Type() CommandType    { return CommandTypeAnalogOutputInt32 }
func (AnalogOutputInt16) Type() CommandType    { return CommandTypeAnalogOutputInt16 }
func (AnalogOutputFloat32) Type() CommandType  { return CommandTypeAnalogOutputFloat32 }
func (AnalogOutputDouble64) Type() CommandType { return CommandTypeAnalogOutputDouble64 }

func (CROB) controlCommand()                 {}
func (AnalogOutputInt32) controlCommand()    {}
func (AnalogOutputInt16) controlCommand()    {}
func (AnalogOutputFloat32) controlCommand()  {}
func (AnalogOutputDouble64) controlCommand() {}

// StatusMirror is the local readback representation of a commanded output
type StatusMirror struct {
	Kind  PointKind // KindAnalogOutputStatus or KindBinaryOutputStatus
	Value PointValue
}

// CommandStatus indicates the result of a command operation
type CommandStatus uint8

// DNP3 Command Status values
const (
	CommandStatusSuccess           CommandStatus = 0   // Command accepted and executed
	CommandStatusTimeout           CommandStatus = 1   // Command timed out
	CommandStatusNoSelect          CommandStatus = 2   // No previous SELECT for this OPERATE
	CommandStatusFormatError       CommandStatus = 3   // Command format error
	CommandStatusNotSupported      CommandStatus = 4   // Command not supported
	CommandStatusAlreadyActive     CommandStatus = 5   // Command already in progress
	CommandStatusHardwareError     CommandStatus = 6   // Hardware error
	CommandStatusLocal             CommandStatus = 7   // In local mode, command rejected
	CommandStatusTooManyOps        CommandStatus = 8   // Too many operations requested
	CommandStatusNotAuthorized     CommandStatus = 9   // Not authorized
	CommandStatusAutomationInhibit CommandStatus = 10  // Automation inhibit prevents operation
	CommandStatusProcessingLimited CommandStatus = 11  // Processing limited
	CommandStatusOutOfRange        CommandStatus = 12  // Value out of range
	CommandStatusNonParticipating  CommandStatus = 126 // Device is non-participating
	CommandStatusUndefined         CommandStatus = 127 // Undefined error
)

var commandStatusNames = map[CommandStatus]string{
	CommandStatusSuccess:           "Success",
	CommandStatusTimeout:           "Timeout",
	CommandStatusNoSelect:          "NoSelect",
	CommandStatusFormatError:       "FormatError",
	CommandStatusNotSupported:      "NotSupported",
	CommandStatusAlreadyActive:     "AlreadyActive",
	CommandStatusHardwareError:     "HardwareError",
	CommandStatusLocal:             "Local",
	CommandStatusTooManyOps:        "TooManyOps",
	CommandStatusNotAuthorized:     "NotAuthorized",
	CommandStatusAutomationInhibit: "AutomationInhibit",
	CommandStatusProcessingLimited: "ProcessingLimited",
	CommandStatusOutOfRange:        "OutOfRange",
	CommandStatusNonParticipating:  "NonParticipating",
	CommandStatusUndefined:         "Undefined",
}

// String returns a string representation of CommandStatus
func (s CommandStatus) String() string {
	if name, ok := commandStatusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsSuccess returns true if the command was successful
func (s CommandStatus) IsSuccess() bool {
	return s == CommandStatusSuccess
}
