// Package simulator provides an in-memory outstation that implements the
// coordinator's stack. It answers polls and commands from its own point
// database after a configurable delay, and can drop polls, go offline or
// report a restart to exercise the coordinator's retry paths.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"avaneesh/dnp3-cache/pkg/internal/logger"
	"avaneesh/dnp3-cache/pkg/internal/queue"
	"avaneesh/dnp3-cache/pkg/master"
	"avaneesh/dnp3-cache/pkg/soe"
	"avaneesh/dnp3-cache/pkg/types"
)

var (
	ErrDisabled  = errors.New("outstation is disabled")
	ErrNoHandler = errors.New("no handler to deliver measurements to")
)

// Config holds the simulated outstation's behaviour
type Config struct {
	ID string

	// Latency delays every response
	Latency time.Duration

	// DropFirstPolls polls are accepted and never answered
	DropFirstPolls int

	// UnsolicitedPeriod reports UnsolicitedPointTypes periodically; 0 disables
	UnsolicitedPeriod     time.Duration
	UnsolicitedPointTypes []types.PointTypeID

	// TickInterval is how often the task processor checks the queue
	TickInterval time.Duration
}

// DefaultConfig returns a responsive outstation configuration
func DefaultConfig() Config {
	return Config{
		ID:           "outstation",
		Latency:      20 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
	}
}

// Outstation is a simulated remote station
type Outstation struct {
	config   Config
	database *Database
	logger   logger.Logger

	taskQueue *queue.PriorityQueue[Task]

	handler soe.Handler
	enabled bool
	started bool
	stateMu sync.RWMutex

	online         atomic.Bool
	restartPending atomic.Bool
	localControl   atomic.Bool
	polls          atomic.Int64
	responses      atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ master.Stack = (*Outstation)(nil)

// New creates a simulated outstation. It is online but delivers nothing
// until Enable is called.
func New(config Config, log logger.Logger) *Outstation {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Outstation{
		config:    config,
		database:  NewDatabase(),
		logger:    log,
		taskQueue: queue.NewPriorityQueue[Task](),
		ctx:       ctx,
		cancel:    cancel,
	}
	o.online.Store(true)

	o.logger.Info("Outstation %s created: latency=%s drop_first_polls=%d", config.ID, config.Latency, config.DropFirstPolls)
	return o
}

// Database returns the point database
func (o *Outstation) Database() *Database {
	return o.database
}

// Update sets one point value
func (o *Outstation) Update(gv types.GroupVariation, index uint16, value types.PointValue) error {
	return o.database.Update(gv, index, value)
}

// Enable starts delivering responses to handler
func (o *Outstation) Enable(handler soe.Handler) error {
	if handler == nil {
		return ErrNoHandler
	}

	o.stateMu.Lock()
	if o.enabled {
		o.stateMu.Unlock()
		return nil
	}
	o.enabled = true
	o.handler = handler
	start := !o.started
	o.started = true
	o.stateMu.Unlock()

	o.logger.Info("Outstation %s enabled", o.config.ID)

	if start {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.taskProcessor()
		}()

		if o.config.UnsolicitedPeriod > 0 && len(o.config.UnsolicitedPointTypes) > 0 {
			o.taskQueue.Push(&UnsolicitedTask{}, PriorityLow, time.Now().Add(o.config.UnsolicitedPeriod))
		}
	}
	return nil
}

// Disable stops accepting requests. Queued tasks are kept.
func (o *Outstation) Disable() error {
	o.stateMu.Lock()
	o.enabled = false
	o.stateMu.Unlock()

	o.logger.Info("Outstation %s disabled", o.config.ID)
	return nil
}

// Shutdown stops the task processor and discards queued tasks
func (o *Outstation) Shutdown() error {
	o.logger.Info("Outstation %s shutting down", o.config.ID)

	o.Disable()
	o.cancel()
	o.wg.Wait()
	o.taskQueue.Clear()

	o.logger.Info("Outstation %s shutdown complete", o.config.ID)
	return nil
}

// IsOnline reports whether the outstation answers requests
func (o *Outstation) IsOnline() bool {
	return o.online.Load()
}

// SetOnline takes the outstation on or off line. Requests sent while
// offline are lost.
func (o *Outstation) SetOnline(online bool) {
	if o.online.Swap(online) != online {
		o.logger.Info("Outstation %s online=%v", o.config.ID, online)
	}
}

// Restart flags a device restart in the IIN of the next response
func (o *Outstation) Restart() {
	o.restartPending.Store(true)
	o.logger.Warn("Outstation %s: restart", o.config.ID)
}

// SetLocalControl switches the outstation to local control. Responses carry
// the local control IIN bit and commands are rejected with LOCAL.
func (o *Outstation) SetLocalControl(local bool) {
	if o.localControl.Swap(local) != local {
		o.logger.Info("Outstation %s local_control=%v", o.config.ID, local)
	}
}

// PollsReceived returns the number of polls received
func (o *Outstation) PollsReceived() int64 {
	return o.polls.Load()
}

// ResponsesSent returns the number of response fragments delivered
func (o *Outstation) ResponsesSent() int64 {
	return o.responses.Load()
}

// IssuePoll queues a response to a read of id
func (o *Outstation) IssuePoll(id types.PointTypeID) error {
	if !o.isEnabled() {
		return ErrDisabled
	}

	n := o.polls.Add(1)
	if n <= int64(o.config.DropFirstPolls) {
		o.logger.Debug("Outstation %s: dropping poll %d for %v", o.config.ID, n, id)
		return nil
	}

	o.taskQueue.Push(&PollTask{pointType: id}, PriorityNormal, time.Now().Add(o.config.Latency))
	return nil
}

// IssueControlCommand queues a command. done is called from the task
// processor with the outstation's status.
func (o *Outstation) IssueControlCommand(cmd types.ControlCommand, index uint16, mode master.OperateMode, done func(master.CommandResult)) error {
	set := []master.IndexedCommand{{Command: cmd, Index: index}}
	return o.IssueControlCommands(set, mode, func(results []master.CommandResult) {
		if done != nil {
			done(results[0])
		}
	})
}

// IssueControlCommands queues a command set answered by one response
func (o *Outstation) IssueControlCommands(set []master.IndexedCommand, mode master.OperateMode, done func([]master.CommandResult)) error {
	if !o.isEnabled() {
		return ErrDisabled
	}
	if len(set) == 0 {
		return errors.New("empty command set")
	}
	for _, c := range set {
		if c.Command == nil {
			return fmt.Errorf("nil command for index %d", c.Index)
		}
	}

	task := &CommandTask{set: set, mode: mode, done: done}
	o.taskQueue.Push(task, PriorityHigh, time.Now().Add(o.config.Latency))
	return nil
}

// taskProcessor processes tasks from the queue
func (o *Outstation) taskProcessor() {
	ticker := time.NewTicker(o.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.processTasks()
		}
	}
}

// processTasks runs every task whose time has come
func (o *Outstation) processTasks() {
	for {
		task, ok := o.taskQueue.NextReady(time.Now())
		if !ok {
			return
		}

		if err := task.Execute(o); err != nil {
			o.logger.Warn("Outstation %s: %v task failed: %v", o.config.ID, task.Type(), err)
		}

		if task.Type() == TaskTypeUnsolicited {
			o.taskQueue.Push(task, PriorityLow, time.Now().Add(o.config.UnsolicitedPeriod))
		}
	}
}

// respond delivers the database's points of one type as a single fragment
func (o *Outstation) respond(id types.PointTypeID, unsolicited bool) error {
	if !o.IsOnline() {
		o.logger.Debug("Outstation %s: offline, response to %v lost", o.config.ID, id)
		return nil
	}

	gv, err := id.Resolve()
	if err != nil {
		return err
	}

	o.stateMu.RLock()
	handler := o.handler
	o.stateMu.RUnlock()
	if handler == nil {
		return ErrNoHandler
	}

	info := soe.ResponseInfo{Unsolicited: unsolicited, FIR: true, FIN: true, IIN: o.iin()}

	handler.OnBeginFragment(info)
	if values := o.database.Collection(gv); values != nil {
		handler.Process(soe.HeaderInfo{
			PointType:   id,
			Qualifier:   0x01,
			IsEvent:     gv.IsEvent(),
			Unsolicited: unsolicited,
		}, values)
	}
	handler.OnEndFragment(info)

	o.responses.Add(1)
	return nil
}

// iin builds the indications for the next response; the restart bit is
// reported once.
func (o *Outstation) iin() types.IIN {
	var iin types.IIN
	if o.restartPending.Swap(false) {
		iin.IIN1 |= types.IIN1DeviceRestart
	}
	if o.localControl.Load() {
		iin.IIN1 |= types.IIN1LocalControl
	}
	return iin
}

// operateSet executes a command set. With select before operate nothing
// is applied unless every element selects; the elements that did select
// then report NO_SELECT.
func (o *Outstation) operateSet(set []master.IndexedCommand, mode master.OperateMode) []types.CommandStatus {
	statuses := make([]types.CommandStatus, len(set))
	if !o.IsOnline() {
		for i := range statuses {
			statuses[i] = types.CommandStatusTimeout
		}
		return statuses
	}
	if o.localControl.Load() {
		for i := range statuses {
			statuses[i] = types.CommandStatusLocal
		}
		return statuses
	}

	if mode == master.OperateModeSelectBeforeOperate {
		rejected := false
		for i, c := range set {
			statuses[i] = o.database.Select(c.Command, c.Index)
			if !statuses[i].IsSuccess() {
				rejected = true
				o.logger.Debug("Outstation %s: select of index %d rejected: %v", o.config.ID, c.Index, statuses[i])
			}
		}
		if rejected {
			for i := range statuses {
				if statuses[i].IsSuccess() {
					statuses[i] = types.CommandStatusNoSelect
				}
			}
			return statuses
		}
	}

	for i, c := range set {
		statuses[i] = o.database.ApplyCommand(c.Command, c.Index)
		o.logger.Debug("Outstation %s: %v %v to index %d: %v", o.config.ID, mode, c.Command.Type(), c.Index, statuses[i])
	}
	return statuses
}

func (o *Outstation) isEnabled() bool {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.enabled
}
