package master

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"avaneesh/dnp3-cache/pkg/command"
	"avaneesh/dnp3-cache/pkg/soe"
	"avaneesh/dnp3-cache/pkg/types"
)

var (
	ErrEmptyCommandSet = errors.New("command set is empty")
	ErrMissingResult   = errors.New("outstation returned no status for command")
)

// CommandReceipt tracks one issued control command
type CommandReceipt struct {
	ID        uuid.UUID          `json:"id"`
	PointType types.PointTypeID  `json:"-"`
	Index     uint16             `json:"index"`
	Command   types.CommandType  `json:"-"`
	Mode      OperateMode        `json:"-"`
	Mirror    types.StatusMirror `json:"-"`
	IssuedAt  time.Time          `json:"issued_at"`

	once   sync.Once
	done   chan struct{}
	result CommandResult
}

// Wait blocks until the outstation answers the command or ctx is done
func (r *CommandReceipt) Wait(ctx context.Context) (CommandResult, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

// Done is closed once the command has completed
func (r *CommandReceipt) Done() <-chan struct{} {
	return r.done
}

func (r *CommandReceipt) complete(res CommandResult) bool {
	first := false
	r.once.Do(func() {
		r.result = res
		close(r.done)
		first = true
	})
	return first
}

// PointCommand addresses a value to one output point
type PointCommand struct {
	Group     uint16           `json:"group"`
	Variation uint16           `json:"variation"`
	Index     uint16           `json:"index"`
	Value     types.PointValue `json:"value"`
}

// SendControlCommand sets an output point using the configured operate mode.
// The command is built and validated before anything is sent. The expected
// status is written to the cache as the command is issued, without waiting
// for the outstation's confirmation; a failure invalidates it again.
func (c *Coordinator) SendControlCommand(group, variation, index uint16, value types.PointValue) (*CommandReceipt, error) {
	return c.sendCommand(group, variation, index, value, c.config.OperateMode)
}

// SelectAndOperate sets an output point with a SELECT followed by OPERATE
func (c *Coordinator) SelectAndOperate(group, variation, index uint16, value types.PointValue) (*CommandReceipt, error) {
	return c.sendCommand(group, variation, index, value, OperateModeSelectBeforeOperate)
}

// DirectOperate sets an output point with a single DIRECT OPERATE
func (c *Coordinator) DirectOperate(group, variation, index uint16, value types.PointValue) (*CommandReceipt, error) {
	return c.sendCommand(group, variation, index, value, OperateModeDirect)
}

// SendControlCommands sets several output points in one request using the
// configured operate mode. Every command is validated before anything is
// sent; one invalid element rejects the whole set. Receipts keep the order
// of cmds.
func (c *Coordinator) SendControlCommands(cmds []PointCommand) ([]*CommandReceipt, error) {
	return c.sendCommandSet(cmds, c.config.OperateMode)
}

// SelectAndOperateSet selects every point of the set, then operates them
func (c *Coordinator) SelectAndOperateSet(cmds []PointCommand) ([]*CommandReceipt, error) {
	return c.sendCommandSet(cmds, OperateModeSelectBeforeOperate)
}

// DirectOperateSet operates every point of the set in one request
func (c *Coordinator) DirectOperateSet(cmds []PointCommand) ([]*CommandReceipt, error) {
	return c.sendCommandSet(cmds, OperateModeDirect)
}

type preparedCommand struct {
	gv      types.GroupVariation
	cmd     types.ControlCommand
	receipt *CommandReceipt
}

// prepare resolves, builds and translates one command without any I/O
func (c *Coordinator) prepare(pc PointCommand, mode OperateMode) (preparedCommand, error) {
	gv, err := types.ResolveGroupVariation(pc.Group, pc.Variation)
	if err != nil {
		return preparedCommand{}, err
	}

	cmd, err := command.FromPointValue(gv, pc.Value)
	if err != nil {
		return preparedCommand{}, err
	}
	mirror, err := command.ToStatusMirror(cmd)
	if err != nil {
		return preparedCommand{}, err
	}

	return preparedCommand{
		gv:  gv,
		cmd: cmd,
		receipt: &CommandReceipt{
			ID:        uuid.New(),
			PointType: gv.ID(),
			Index:     pc.Index,
			Command:   cmd.Type(),
			Mode:      mode,
			Mirror:    mirror,
			IssuedAt:  c.store.Now(),
			done:      make(chan struct{}),
		},
	}, nil
}

// mirror writes the expected status ahead of the engine call, so a
// completion delivered before the call returns always lands after it
func (c *Coordinator) mirror(p preparedCommand) {
	c.store.ApplyLocal(p.gv, p.receipt.Index, mirrorValue(p.gv, p.receipt.Mirror))
}

func (c *Coordinator) sendCommand(group, variation, index uint16, value types.PointValue, mode OperateMode) (*CommandReceipt, error) {
	p, err := c.prepare(PointCommand{Group: group, Variation: variation, Index: index, Value: value}, mode)
	if err != nil {
		return nil, err
	}
	if c.stack == nil {
		return nil, ErrNoStack
	}

	receipt := p.receipt
	c.mirror(p)
	err = c.stack.IssueControlCommand(p.cmd, index, mode, func(res CommandResult) {
		c.onCommandComplete(receipt, p.gv, res)
	})
	if err != nil {
		c.stats.commandFailed()
		c.store.Invalidate(p.gv)
		return nil, fmt.Errorf("failed to issue %v to %v[%d]: %w", p.cmd.Type(), p.gv, index, err)
	}
	c.stats.commandIssued()

	c.logger.Info("Coordinator %s: %v %v to %v[%d] = %v (id=%s)",
		c.config.ID, mode, p.cmd.Type(), p.gv, index, receipt.Mirror.Value, receipt.ID)
	return receipt, nil
}

func (c *Coordinator) sendCommandSet(cmds []PointCommand, mode OperateMode) ([]*CommandReceipt, error) {
	if len(cmds) == 0 {
		return nil, ErrEmptyCommandSet
	}

	prepared := make([]preparedCommand, len(cmds))
	for i, pc := range cmds {
		p, err := c.prepare(pc, mode)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		prepared[i] = p
	}
	if c.stack == nil {
		return nil, ErrNoStack
	}

	set := make([]IndexedCommand, len(prepared))
	receipts := make([]*CommandReceipt, len(prepared))
	for i, p := range prepared {
		set[i] = IndexedCommand{Command: p.cmd, Index: p.receipt.Index}
		receipts[i] = p.receipt
		c.mirror(p)
	}

	err := c.stack.IssueControlCommands(set, mode, func(results []CommandResult) {
		for i, p := range prepared {
			res := CommandResult{Status: types.CommandStatusUndefined, Err: ErrMissingResult}
			if i < len(results) {
				res = results[i]
			}
			c.onCommandComplete(p.receipt, p.gv, res)
		}
	})
	if err != nil {
		for _, p := range prepared {
			c.stats.commandFailed()
			c.store.Invalidate(p.gv)
		}
		return nil, fmt.Errorf("failed to issue set of %d commands: %w", len(set), err)
	}
	for range prepared {
		c.stats.commandIssued()
	}

	c.logger.Info("Coordinator %s: %v set of %d commands", c.config.ID, mode, len(set))
	return receipts, nil
}

// mirrorValue shapes a mirrored status the way a report of gv would be stored
func mirrorValue(gv types.GroupVariation, mirror types.StatusMirror) types.PointValue {
	if mirror.Kind == types.KindAnalogOutputStatus {
		if f, ok := mirror.Value.AsFloat64(); ok {
			return soe.AnalogValue(f, gv.IntegerValued())
		}
	}
	return mirror.Value
}

func (c *Coordinator) onCommandComplete(receipt *CommandReceipt, gv types.GroupVariation, res CommandResult) {
	if !res.Succeeded() {
		c.stats.commandFailed()
		c.store.Invalidate(gv)
		c.logger.Warn("Coordinator %s: command %s to %v[%d] failed: status=%v err=%v",
			c.config.ID, receipt.ID, gv, receipt.Index, res.Status, res.Err)
	} else {
		c.logger.Debug("Coordinator %s: command %s completed", c.config.ID, receipt.ID)
	}

	if !receipt.complete(res) {
		c.logger.Warn("Coordinator %s: duplicate completion for command %s", c.config.ID, receipt.ID)
	}
}
