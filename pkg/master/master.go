package master

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"avaneesh/dnp3-cache/pkg/cache"
	"avaneesh/dnp3-cache/pkg/internal/logger"
	"avaneesh/dnp3-cache/pkg/soe"
	"avaneesh/dnp3-cache/pkg/types"
)

var (
	ErrPollTimeout = errors.New("no data received before retries were exhausted")
	ErrNoStack     = errors.New("coordinator has no stack")
)

// pollRequest describes a poll cycle owned by one Get call
type pollRequest struct {
	id               types.PointTypeID
	issuedAt         time.Time
	retriesRemaining int
}

// Coordinator serves synchronous reads of one remote station's points
// from a cache fed by asynchronous protocol deliveries.
type Coordinator struct {
	config Config
	stack  Stack
	store  *cache.Store
	logger logger.Logger
	stats  *Statistics

	iinMu   sync.Mutex
	iinSeen types.IIN

	scanMu     sync.Mutex
	scanCancel context.CancelFunc
	scanWG     sync.WaitGroup
}

var _ soe.Handler = (*Coordinator)(nil)

// New creates a coordinator polling through stack. A nil store gets a fresh
// one; a nil logger discards output.
func New(config Config, stack Stack, store *cache.Store, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if store == nil {
		store = cache.New()
	}

	c := &Coordinator{
		config: config.normalized(),
		stack:  stack,
		store:  store,
		logger: log,
		stats:  NewStatistics(),
	}

	c.logger.Info("Coordinator %s created: max_age=%s retries=%d retry_delay=%s",
		c.config.ID, c.config.MaxAge, c.config.MaxRetries, c.config.RetryDelay)
	return c
}

// Config returns the effective configuration
func (c *Coordinator) Config() Config {
	return c.config
}

// Store returns the backing store
func (c *Coordinator) Store() *cache.Store {
	return c.store
}

// Statistics returns the coordinator's counters
func (c *Coordinator) Statistics() *Statistics {
	return c.stats
}

// Get returns the values of gv, polling the stack when the cache is older
// than policy.MaxAge. When no data arrives within the retry budget it
// returns an empty map and an error wrapping ErrPollTimeout.
func (c *Coordinator) Get(ctx context.Context, gv types.GroupVariation, policy PollPolicy) (types.IndexValueMap, error) {
	decision, snap := c.store.BeginPoll(gv, policy.MaxAge)
	switch decision {
	case cache.DecisionFresh:
		c.stats.cacheHit()
		return snap.Values, nil
	case cache.DecisionBackoff:
		c.stats.backoff()
		c.logger.Debug("Coordinator %s: %v polled unsuccessfully at %s, backing off",
			c.config.ID, gv, snap.LastPollAttempt.Format(time.RFC3339Nano))
		return types.IndexValueMap{}, fmt.Errorf("%w: %v (backing off)", ErrPollTimeout, gv)
	}

	owner := decision == cache.DecisionStarted
	req := pollRequest{id: gv.ID(), issuedAt: c.store.Now(), retriesRemaining: policy.MaxRetries}

	failed := false
	defer func() {
		c.store.EndPoll(gv, owner, !failed)
	}()

	if owner {
		c.issuePoll(req)
	}

	for req.retriesRemaining > 0 {
		req.retriesRemaining--

		populated, err := c.store.WaitForUpdate(ctx, gv, policy.RetryDelay)
		if err != nil {
			return types.IndexValueMap{}, err
		}
		if populated {
			snap, _ := c.store.Peek(gv)
			return snap.Values, nil
		}
		// A joined reader re-polls once the owner has given up
		if owner || c.store.ClaimPoll(gv) {
			owner = true
			c.issuePoll(req)
		}
	}

	// A joined reader may see the owner's data land between its last wait and here.
	if snap, _ := c.store.Peek(gv); snap.Populated() {
		return snap.Values, nil
	}

	failed = true
	c.stats.pollTimeout()
	c.logger.Warn("Coordinator %s: no data for %v after %d retries (%s)",
		c.config.ID, gv, policy.MaxRetries, c.store.Now().Sub(req.issuedAt))
	return types.IndexValueMap{}, fmt.Errorf("%w: %v", ErrPollTimeout, gv)
}

func (c *Coordinator) issuePoll(req pollRequest) {
	if c.stack == nil {
		c.stats.pollError()
		c.logger.Error("Coordinator %s: %v", c.config.ID, ErrNoStack)
		return
	}

	c.stats.pollIssued()
	c.logger.Debug("Coordinator %s: polling %v (retries remaining %d)", c.config.ID, req.id, req.retriesRemaining)
	if err := c.stack.IssuePoll(req.id); err != nil {
		c.stats.pollError()
		c.logger.Warn("Coordinator %s: failed to issue poll for %v: %v", c.config.ID, req.id, err)
	}
}

// GetByPointType reads a point type with the configured policy
func (c *Coordinator) GetByPointType(ctx context.Context, group, variation uint16) (types.IndexValueMap, error) {
	gv, err := types.ResolveGroupVariation(group, variation)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, gv, c.config.Policy())
}

// GetByPointTypeAndIndex reads a single point. A point the outstation did
// not report is returned as an absent value.
func (c *Coordinator) GetByPointTypeAndIndex(ctx context.Context, group, variation, index uint16) (types.PointValue, error) {
	values, err := c.GetByPointType(ctx, group, variation)
	if values == nil {
		return types.Absent(), err
	}
	return values.Get(index), err
}

// GetMany reads several point types concurrently. Results keep the order of
// ids; a type that timed out is returned with empty values and its error
// is joined into the returned error.
func (c *Coordinator) GetMany(ctx context.Context, ids []types.PointTypeID) ([]cache.Snapshot, error) {
	out := make([]cache.Snapshot, len(ids))
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		gv, err := id.Resolve()
		if err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func(i int, gv types.GroupVariation) {
			defer wg.Done()
			values, err := c.Get(ctx, gv, c.config.Policy())
			snap, _ := c.store.Peek(gv)
			snap.Values = values
			out[i] = snap
			errs[i] = err
		}(i, gv)
	}
	wg.Wait()

	return out, errors.Join(errs...)
}

// ScanAll reads every configured default point type
func (c *Coordinator) ScanAll(ctx context.Context) ([]cache.Snapshot, error) {
	return c.GetMany(ctx, c.config.DefaultPointTypes)
}

// Snapshot reads the default point types and keys them by point kind,
// e.g. "Analog" or "BinaryOutputStatus". A kind that appears twice falls
// back to the group/variation name.
func (c *Coordinator) Snapshot(ctx context.Context) (map[string]types.IndexValueMap, error) {
	snaps, err := c.ScanAll(ctx)
	out := make(map[string]types.IndexValueMap, len(snaps))
	for _, s := range snaps {
		if s.Values == nil {
			continue
		}
		key := s.PointType.Kind().String()
		if _, dup := out[key]; dup {
			key = s.PointType.String()
		}
		out[key] = s.Values
	}
	return out, err
}

// Start begins the periodic scan of the default point types. It does
// nothing when no scan period is configured or a scan is already running.
func (c *Coordinator) Start() {
	if c.config.ScanPeriod <= 0 {
		return
	}

	c.scanMu.Lock()
	defer c.scanMu.Unlock()
	if c.scanCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.scanCancel = cancel
	c.scanWG.Add(1)
	go c.scanLoop(ctx)

	c.logger.Info("Coordinator %s: scanning %d point types every %s",
		c.config.ID, len(c.config.DefaultPointTypes), c.config.ScanPeriod)
}

// Stop ends the periodic scan and waits for a scan in progress
func (c *Coordinator) Stop() {
	c.scanMu.Lock()
	cancel := c.scanCancel
	c.scanCancel = nil
	c.scanMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.scanWG.Wait()
}

func (c *Coordinator) scanLoop(ctx context.Context) {
	defer c.scanWG.Done()

	ticker := time.NewTicker(c.config.ScanPeriod)
	defer ticker.Stop()

	// Half the period, so each tick finds the previous scan stale
	policy := c.config.Policy()
	policy.MaxAge = c.config.ScanPeriod / 2

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.scan(ctx, policy)
		}
	}
}

func (c *Coordinator) scan(ctx context.Context, policy PollPolicy) {
	var wg sync.WaitGroup
	for _, id := range c.config.DefaultPointTypes {
		gv, err := id.Resolve()
		if err != nil {
			continue
		}
		wg.Add(1)
		go func(gv types.GroupVariation) {
			defer wg.Done()
			if _, err := c.Get(ctx, gv, policy); err != nil && ctx.Err() == nil {
				c.logger.Debug("Coordinator %s: scan of %v: %v", c.config.ID, gv, err)
			}
		}(gv)
	}
	wg.Wait()
}

// Peek returns the cached entry for a point type without polling
func (c *Coordinator) Peek(group, variation uint16) (cache.Snapshot, error) {
	gv, err := types.ResolveGroupVariation(group, variation)
	if err != nil {
		return cache.Snapshot{}, err
	}
	snap, _ := c.store.Peek(gv)
	return snap, nil
}

// OnBeginFragment invalidates the cache when the outstation reports a
// restart and warns when it enters local control or reports trouble.
func (c *Coordinator) OnBeginFragment(info soe.ResponseInfo) {
	c.iinMu.Lock()
	prev := c.iinSeen
	c.iinSeen = info.IIN
	c.iinMu.Unlock()

	if info.IIN.IsInLocalControl() && !prev.IsInLocalControl() {
		c.logger.Warn("Coordinator %s: outstation is in local control, commands may be rejected", c.config.ID)
	}
	if info.IIN.HasDeviceTrouble() && !prev.HasDeviceTrouble() {
		c.logger.Warn("Coordinator %s: outstation reports device trouble", c.config.ID)
	}
	if info.IIN.HasDeviceRestart() && !prev.HasDeviceRestart() {
		c.logger.Warn("Coordinator %s: outstation restart indicated, invalidating cache", c.config.ID)
		c.store.InvalidateAll()
	}
}

// OnEndFragment marks the end of a response fragment
func (c *Coordinator) OnEndFragment(info soe.ResponseInfo) {
	c.logger.Debug("Coordinator %s: fragment complete (unsolicited=%v fin=%v)", c.config.ID, info.Unsolicited, info.FIN)
}

// Process stores one delivered collection. Errors are logged and the
// delivery dropped; nothing propagates back into the engine.
func (c *Coordinator) Process(info soe.HeaderInfo, values soe.Collection) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.collectionDropped()
			c.logger.Error("Coordinator %s: dropped %v delivery after panic: %v", c.config.ID, info.PointType, r)
		}
	}()

	gv, err := info.PointType.Resolve()
	if err != nil {
		c.stats.collectionDropped()
		c.logger.Warn("Coordinator %s: dropped delivery: %v", c.config.ID, err)
		return
	}

	m, err := soe.Demultiplex(gv, values)
	if err != nil {
		c.stats.collectionDropped()
		c.logger.Error("Coordinator %s: dropped delivery: %v", c.config.ID, err)
		return
	}

	src := cache.SourceSolicited
	if info.Unsolicited {
		src = cache.SourceUnsolicited
	}
	c.store.Ingest(gv, m, src)
	c.stats.collectionIngested()

	c.logger.Debug("Coordinator %s: stored %d %v values (%v)", c.config.ID, len(m), gv, src)
}
