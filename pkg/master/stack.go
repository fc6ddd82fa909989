package master

import "avaneesh/dnp3-cache/pkg/types"

// Stack is the protocol engine a coordinator drives. Measurements flow
// back asynchronously through the soe.Handler the engine was enabled with.
type Stack interface {
	// IssuePoll requests every object of one point type. It must not block
	// on the response and may be called while an earlier poll is outstanding.
	IssuePoll(id types.PointTypeID) error

	// IssueControlCommand sends a command to an output point. done is called
	// once from the engine's goroutine when the outstation answers.
	IssueControlCommand(cmd types.ControlCommand, index uint16, mode OperateMode, done func(CommandResult)) error

	// IssueControlCommands sends a set of commands in one request. done is
	// called once with one result per command, in the order of set.
	IssueControlCommands(set []IndexedCommand, mode OperateMode, done func([]CommandResult)) error
}

// IndexedCommand addresses a command to one output point
type IndexedCommand struct {
	Command types.ControlCommand
	Index   uint16
}

// CommandResult is the completion of one control command
type CommandResult struct {
	Status types.CommandStatus
	Err    error
}

// Succeeded reports whether the outstation accepted the command
func (r CommandResult) Succeeded() bool {
	return r.Err == nil && r.Status.IsSuccess()
}
