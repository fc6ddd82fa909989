package master

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avaneesh/dnp3-cache/pkg/command"
	"avaneesh/dnp3-cache/pkg/soe"
	"avaneesh/dnp3-cache/pkg/types"
)

// TestSendControlCommand tests command construction and the local mirror write
func TestSendControlCommand(t *testing.T) {
	tests := []struct {
		name       string
		group      uint16
		variation  uint16
		value      types.PointValue
		wantCmd    types.ControlCommand
		wantMirror types.PointValue
	}{
		{"Analog double", 40, 4, types.FloatValue(12.5), types.AnalogOutputDouble64{Value: 12.5}, types.FloatValue(12.5)},
		{"Analog float", 40, 3, types.FloatValue(0.25), types.AnalogOutputFloat32{Value: 0.25}, types.FloatValue(0.25)},
		{"Analog int32", 40, 1, types.IntValue(9), types.AnalogOutputInt32{Value: 9}, types.IntValue(9)},
		{"Analog int16", 40, 2, types.IntValue(-2), types.AnalogOutputInt16{Value: -2}, types.IntValue(-2)},
		{"Relay on", 10, 2, types.BoolValue(true), types.CROB{OpType: types.ControlCodeLatchOn, Count: 1}, types.BoolValue(true)},
		{"Relay off", 10, 1, types.BoolValue(false), types.CROB{OpType: types.ControlCodeLatchOff, Count: 1}, types.BoolValue(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := &fakeStack{}
			c := New(testConfig(), stack, nil, nil)

			receipt, err := c.SendControlCommand(tt.group, tt.variation, 3, tt.value)
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, receipt.ID)
			assert.Equal(t, tt.wantCmd.Type(), receipt.Command)

			sent := stack.lastCommand()
			assert.Equal(t, tt.wantCmd, sent.cmd)
			assert.Equal(t, uint16(3), sent.index)
			assert.Equal(t, OperateModeDirect, sent.mode)

			snap, err := c.Peek(tt.group, tt.variation)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMirror, snap.Values.Get(3))
		})
	}
}

func TestSendControlCommand_RejectedBeforeIO(t *testing.T) {
	tests := []struct {
		name      string
		group     uint16
		variation uint16
		value     types.PointValue
		wantErr   error
	}{
		{"Unknown point type", 999, 999, types.FloatValue(1), types.ErrUnknownPointType},
		{"Input point", 30, 6, types.FloatValue(1), command.ErrUnsupportedCommandPoint},
		{"Relay with number", 10, 2, types.IntValue(1), command.ErrInvalidCommandValue},
		{"Analog with bool", 40, 4, types.BoolValue(true), command.ErrInvalidCommandValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := &fakeStack{}
			c := New(testConfig(), stack, nil, nil)

			_, err := c.SendControlCommand(tt.group, tt.variation, 0, tt.value)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, stack.commands)
		})
	}
}

func TestSendControlCommand_IssueError(t *testing.T) {
	stack := &fakeStack{commandFn: func(issuedCommand) error { return errors.New("link down") }}
	c := New(testConfig(), stack, nil, nil)

	_, err := c.SendControlCommand(40, 4, 0, types.FloatValue(1))
	require.Error(t, err)

	snap, _ := c.Peek(40, 4)
	assert.True(t, snap.Values.Get(0).IsAbsent(), "mirror must not be written when the command was not sent")
	assert.Equal(t, uint64(1), c.Statistics().Snapshot().CommandsFailed)
}

// TestSendControlCommand_FailedBeforeReturn tests an engine that rejects the
// command before IssueControlCommand returns
func TestSendControlCommand_FailedBeforeReturn(t *testing.T) {
	stack := &fakeStack{commandFn: func(c issuedCommand) error {
		c.done(CommandResult{Status: types.CommandStatusTimeout, Err: errors.New("no response")})
		return nil
	}}
	c := New(testConfig(), stack, nil, nil)

	receipt, err := c.SendControlCommand(40, 4, 0, types.FloatValue(99))
	require.NoError(t, err)

	res, err := receipt.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Succeeded())

	snap, _ := c.Peek(40, 4)
	assert.Empty(t, snap.Values, "a failed command must not stay mirrored")
	assert.Equal(t, uint64(1), c.Statistics().Snapshot().CommandsFailed)
}

// TestSendControlCommand_VisibleToNextRead tests that a fresh read reflects the command without polling
func TestSendControlCommand_VisibleToNextRead(t *testing.T) {
	stack := &fakeStack{}
	c := New(testConfig(), stack, nil, nil)
	stack.onPoll = func(n int, id types.PointTypeID) {
		c.Process(header(types.Group40Var4), soe.AnalogOutputStatusCollection{
			{Index: 0, Value: types.AnalogOutputStatus{Value: 1}},
			{Index: 1, Value: types.AnalogOutputStatus{Value: 2}},
		})
	}
	ctx := context.Background()

	_, err := c.GetByPointType(ctx, 40, 4)
	require.NoError(t, err)

	_, err = c.SendControlCommand(40, 4, 1, types.FloatValue(42))
	require.NoError(t, err)

	values, err := c.GetByPointType(ctx, 40, 4)
	require.NoError(t, err)
	assert.Equal(t, types.FloatValue(1), values.Get(0))
	assert.Equal(t, types.FloatValue(42), values.Get(1))
	assert.Equal(t, 1, stack.pollCount())
}

func TestSendControlCommand_Completion(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		stack := &fakeStack{commandFn: func(c issuedCommand) error {
			go c.done(CommandResult{Status: types.CommandStatusSuccess})
			return nil
		}}
		c := New(testConfig(), stack, nil, nil)

		receipt, err := c.SendControlCommand(10, 2, 0, types.BoolValue(true))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		res, err := receipt.Wait(ctx)
		require.NoError(t, err)
		assert.True(t, res.Succeeded())
	})

	t.Run("Failure invalidates the entry", func(t *testing.T) {
		stack := &fakeStack{}
		c := New(testConfig(), stack, nil, nil)
		c.Process(header(types.Group10Var2), soe.BinaryOutputStatusCollection{{Index: 0, Value: types.BinaryOutputStatus{Value: false}}})

		receipt, err := c.SendControlCommand(10, 2, 0, types.BoolValue(true))
		require.NoError(t, err)

		stack.lastCommand().done(CommandResult{Status: types.CommandStatusHardwareError})

		res, err := receipt.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.CommandStatusHardwareError, res.Status)

		snap, _ := c.Peek(10, 2)
		assert.False(t, snap.Populated())
		assert.Empty(t, snap.Values)

		// A second completion is ignored
		stack.lastCommand().done(CommandResult{Status: types.CommandStatusSuccess})
		res, _ = receipt.Wait(context.Background())
		assert.Equal(t, types.CommandStatusHardwareError, res.Status)
	})

	t.Run("Wait honours context", func(t *testing.T) {
		c := New(testConfig(), &fakeStack{}, nil, nil)
		receipt, err := c.SendControlCommand(10, 2, 0, types.BoolValue(true))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = receipt.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSelectAndOperate(t *testing.T) {
	stack := &fakeStack{}
	c := New(testConfig(), stack, nil, nil)

	receipt, err := c.SelectAndOperate(40, 4, 0, types.FloatValue(5))
	require.NoError(t, err)
	assert.Equal(t, OperateModeSelectBeforeOperate, receipt.Mode)
	assert.Equal(t, OperateModeSelectBeforeOperate, stack.lastCommand().mode)

	cfg := testConfig()
	cfg.OperateMode = OperateModeSelectBeforeOperate
	c = New(cfg, stack, nil, nil)
	_, err = c.DirectOperate(40, 4, 0, types.FloatValue(5))
	require.NoError(t, err)
	assert.Equal(t, OperateModeDirect, stack.lastCommand().mode)
}

func TestSendControlCommands(t *testing.T) {
	cmds := []PointCommand{
		{Group: 40, Variation: 4, Index: 0, Value: types.FloatValue(5)},
		{Group: 10, Variation: 2, Index: 1, Value: types.BoolValue(true)},
	}

	t.Run("One request for the whole set", func(t *testing.T) {
		stack := &fakeStack{}
		c := New(testConfig(), stack, nil, nil)

		receipts, err := c.SendControlCommands(cmds)
		require.NoError(t, err)
		require.Len(t, receipts, 2)
		assert.Empty(t, stack.commands)

		sent := stack.lastSet()
		assert.Equal(t, OperateModeDirect, sent.mode)
		assert.Equal(t, []IndexedCommand{
			{Command: types.AnalogOutputDouble64{Value: 5}, Index: 0},
			{Command: types.CROB{OpType: types.ControlCodeLatchOn, Count: 1}, Index: 1},
		}, sent.set)

		snap, _ := c.Peek(40, 4)
		assert.Equal(t, types.FloatValue(5), snap.Values.Get(0))
		snap, _ = c.Peek(10, 2)
		assert.Equal(t, types.BoolValue(true), snap.Values.Get(1))

		sent.done([]CommandResult{
			{Status: types.CommandStatusSuccess},
			{Status: types.CommandStatusHardwareError},
		})

		res, err := receipts[0].Wait(context.Background())
		require.NoError(t, err)
		assert.True(t, res.Succeeded())
		res, err = receipts[1].Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.CommandStatusHardwareError, res.Status)

		snap, _ = c.Peek(40, 4)
		assert.Equal(t, types.FloatValue(5), snap.Values.Get(0))
		snap, _ = c.Peek(10, 2)
		assert.Empty(t, snap.Values)
		assert.Equal(t, uint64(2), c.Statistics().Snapshot().CommandsIssued)
	})

	t.Run("Select before operate", func(t *testing.T) {
		stack := &fakeStack{}
		c := New(testConfig(), stack, nil, nil)

		receipts, err := c.SelectAndOperateSet(cmds)
		require.NoError(t, err)
		assert.Equal(t, OperateModeSelectBeforeOperate, receipts[1].Mode)
		assert.Equal(t, OperateModeSelectBeforeOperate, stack.lastSet().mode)
	})

	t.Run("Missing results fail the remaining commands", func(t *testing.T) {
		stack := &fakeStack{setFn: func(s issuedSet) error {
			s.done([]CommandResult{{Status: types.CommandStatusSuccess}})
			return nil
		}}
		c := New(testConfig(), stack, nil, nil)

		receipts, err := c.DirectOperateSet(cmds)
		require.NoError(t, err)
		res, _ := receipts[1].Wait(context.Background())
		assert.ErrorIs(t, res.Err, ErrMissingResult)

		snap, _ := c.Peek(10, 2)
		assert.Empty(t, snap.Values)
	})

	t.Run("Issue error", func(t *testing.T) {
		stack := &fakeStack{setFn: func(issuedSet) error { return errors.New("link down") }}
		c := New(testConfig(), stack, nil, nil)

		_, err := c.SendControlCommands(cmds)
		require.Error(t, err)

		snap, _ := c.Peek(40, 4)
		assert.Empty(t, snap.Values)
		assert.Equal(t, uint64(2), c.Statistics().Snapshot().CommandsFailed)
	})
}

func TestSendControlCommands_RejectedBeforeIO(t *testing.T) {
	tests := []struct {
		name    string
		cmds    []PointCommand
		wantErr error
	}{
		{"Empty set", nil, ErrEmptyCommandSet},
		{"One invalid value", []PointCommand{
			{Group: 40, Variation: 4, Index: 0, Value: types.FloatValue(5)},
			{Group: 10, Variation: 2, Index: 0, Value: types.IntValue(1)},
		}, command.ErrInvalidCommandValue},
		{"One input point", []PointCommand{
			{Group: 30, Variation: 6, Index: 0, Value: types.FloatValue(5)},
		}, command.ErrUnsupportedCommandPoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := &fakeStack{}
			c := New(testConfig(), stack, nil, nil)

			_, err := c.SendControlCommands(tt.cmds)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, stack.sets)

			snap, _ := c.Peek(40, 4)
			assert.Empty(t, snap.Values)
		})
	}
}
