package cache

import (
	"time"

	"avaneesh/dnp3-cache/pkg/types"
)

// Source identifies where a store write came from
type Source uint8

const (
	SourceSolicited Source = iota
	SourceUnsolicited
	SourceLocal
)

// String returns string representation of Source
func (s Source) String() string {
	switch s {
	case SourceSolicited:
		return "solicited"
	case SourceUnsolicited:
		return "unsolicited"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Update describes one write applied to the store
type Update struct {
	PointType types.GroupVariation
	Values    types.IndexValueMap // only the indices written
	Source    Source
	At        time.Time
}

// Observer is notified after every store write, outside the store lock.
// OnUpdate runs on the writer's goroutine and must not block.
type Observer interface {
	OnUpdate(u Update)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(u Update)

// OnUpdate calls f(u)
func (f ObserverFunc) OnUpdate(u Update) {
	f(u)
}
