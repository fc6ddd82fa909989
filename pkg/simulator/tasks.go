package simulator

import (
	"fmt"

	"avaneesh/dnp3-cache/pkg/master"
	"avaneesh/dnp3-cache/pkg/types"
)

// Task is one unit of outstation work run by the task processor
type Task interface {
	Execute(o *Outstation) error
	Priority() int
	Type() TaskType
}

// TaskType identifies a task
type TaskType int

const (
	TaskTypePoll TaskType = iota
	TaskTypeCommand
	TaskTypeUnsolicited
)

// String returns string representation of task type
func (t TaskType) String() string {
	switch t {
	case TaskTypePoll:
		return "Poll"
	case TaskTypeCommand:
		return "Command"
	case TaskTypeUnsolicited:
		return "Unsolicited"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// Priority levels
const (
	PriorityHigh   = 100
	PriorityNormal = 50
	PriorityLow    = 10
)

// PollTask answers a read of one point type
type PollTask struct {
	pointType types.PointTypeID
}

func (t *PollTask) Execute(o *Outstation) error {
	return o.respond(t.pointType, false)
}

func (t *PollTask) Priority() int {
	return PriorityNormal
}

func (t *PollTask) Type() TaskType {
	return TaskTypePoll
}

// CommandTask executes a command set and reports one status per element
type CommandTask struct {
	set  []master.IndexedCommand
	mode master.OperateMode
	done func([]master.CommandResult)
}

func (t *CommandTask) Execute(o *Outstation) error {
	statuses := o.operateSet(t.set, t.mode)
	results := make([]master.CommandResult, len(statuses))
	failed := 0
	for i, status := range statuses {
		results[i] = master.CommandResult{Status: status}
		if !status.IsSuccess() {
			failed++
		}
	}
	if t.done != nil {
		t.done(results)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d commands failed", failed, len(t.set))
	}
	return nil
}

func (t *CommandTask) Priority() int {
	return PriorityHigh
}

func (t *CommandTask) Type() TaskType {
	return TaskTypeCommand
}

// UnsolicitedTask reports the configured point types without a request
type UnsolicitedTask struct{}

func (t *UnsolicitedTask) Execute(o *Outstation) error {
	if !o.isEnabled() {
		return nil
	}
	var firstErr error
	for _, id := range o.config.UnsolicitedPointTypes {
		if err := o.respond(id, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *UnsolicitedTask) Priority() int {
	return PriorityLow
}

func (t *UnsolicitedTask) Type() TaskType {
	return TaskTypeUnsolicited
}
