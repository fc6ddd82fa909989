package master

import "sync/atomic"

// Statistics tracks coordinator activity
type Statistics struct {
	// Polling
	numPollsIssued  uint64
	numPollErrors   uint64
	numCacheHits    uint64
	numPollTimeouts uint64
	numBackoffs     uint64

	// Ingestion
	numCollectionsIngested uint64
	numCollectionsDropped  uint64

	// Commands
	numCommandsIssued uint64
	numCommandsFailed uint64
}

// StatisticsSnapshot is a point-in-time copy of Statistics
type StatisticsSnapshot struct {
	PollsIssued         uint64 `json:"polls_issued"`
	PollErrors          uint64 `json:"poll_errors"`
	CacheHits           uint64 `json:"cache_hits"`
	PollTimeouts        uint64 `json:"poll_timeouts"`
	Backoffs            uint64 `json:"backoffs"`
	CollectionsIngested uint64 `json:"collections_ingested"`
	CollectionsDropped  uint64 `json:"collections_dropped"`
	CommandsIssued      uint64 `json:"commands_issued"`
	CommandsFailed      uint64 `json:"commands_failed"`
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{}
}

func (s *Statistics) pollIssued()         { atomic.AddUint64(&s.numPollsIssued, 1) }
func (s *Statistics) pollError()          { atomic.AddUint64(&s.numPollErrors, 1) }
func (s *Statistics) cacheHit()           { atomic.AddUint64(&s.numCacheHits, 1) }
func (s *Statistics) pollTimeout()        { atomic.AddUint64(&s.numPollTimeouts, 1) }
func (s *Statistics) backoff()            { atomic.AddUint64(&s.numBackoffs, 1) }
func (s *Statistics) collectionIngested() { atomic.AddUint64(&s.numCollectionsIngested, 1) }
func (s *Statistics) collectionDropped()  { atomic.AddUint64(&s.numCollectionsDropped, 1) }
func (s *Statistics) commandIssued()      { atomic.AddUint64(&s.numCommandsIssued, 1) }
func (s *Statistics) commandFailed()      { atomic.AddUint64(&s.numCommandsFailed, 1) }

// GetPollsIssued returns the number of polls sent to the stack
func (s *Statistics) GetPollsIssued() uint64 {
	return atomic.LoadUint64(&s.numPollsIssued)
}

// GetCacheHits returns the number of reads served from cache
func (s *Statistics) GetCacheHits() uint64 {
	return atomic.LoadUint64(&s.numCacheHits)
}

// GetPollTimeouts returns the number of reads that exhausted their retries
func (s *Statistics) GetPollTimeouts() uint64 {
	return atomic.LoadUint64(&s.numPollTimeouts)
}

// GetCollectionsDropped returns the number of deliveries that could not be stored
func (s *Statistics) GetCollectionsDropped() uint64 {
	return atomic.LoadUint64(&s.numCollectionsDropped)
}

// Snapshot returns a copy of every counter
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		PollsIssued:         atomic.LoadUint64(&s.numPollsIssued),
		PollErrors:          atomic.LoadUint64(&s.numPollErrors),
		CacheHits:           atomic.LoadUint64(&s.numCacheHits),
		PollTimeouts:        atomic.LoadUint64(&s.numPollTimeouts),
		Backoffs:            atomic.LoadUint64(&s.numBackoffs),
		CollectionsIngested: atomic.LoadUint64(&s.numCollectionsIngested),
		CollectionsDropped:  atomic.LoadUint64(&s.numCollectionsDropped),
		CommandsIssued:      atomic.LoadUint64(&s.numCommandsIssued),
		CommandsFailed:      atomic.LoadUint64(&s.numCommandsFailed),
	}
}

// Reset resets all statistics
func (s *Statistics) Reset() {
	atomic.StoreUint64(&s.numPollsIssued, 0)
	atomic.StoreUint64(&s.numPollErrors, 0)
	atomic.StoreUint64(&s.numCacheHits, 0)
	atomic.StoreUint64(&s.numPollTimeouts, 0)
	atomic.StoreUint64(&s.numBackoffs, 0)
	atomic.StoreUint64(&s.numCollectionsIngested, 0)
	atomic.StoreUint64(&s.numCollectionsDropped, 0)
	atomic.StoreUint64(&s.numCommandsIssued, 0)
	atomic.StoreUint64(&s.numCommandsFailed, 0)
}
