package types

import "time"

// DNP3Time represents milliseconds since Unix epoch (Jan 1, 1970 00:00:00 UTC)
type DNP3Time uint64

// FromTime converts a Go time.Time to DNP3Time
func FromTime(t time.Time) DNP3Time {
	return DNP3Time(t.UnixMilli())
}

// ToTime converts DNP3Time to Go time.Time
func (t DNP3Time) ToTime() time.Time {
	return time.UnixMilli(int64(t))
}

// IsValid checks if the timestamp is set
func (t DNP3Time) IsValid() bool {
	return t != 0
}
