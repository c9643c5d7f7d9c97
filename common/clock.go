package common

import "time"

// Creation timestamps supplied by clients must fall inside this window
// relative to the trusted clock; the past bound resists backdating and the
// tighter future bound tolerates modest clock skew without enabling
// post-dated records.
const (
	CreationTimestampMaxAge  = int64(300) // seconds in the past
	CreationTimestampMaxSkew = int64(60)  // seconds in the future
)

// Clock is the trusted time source collaborator used for staleness checks
// and audit timestamps
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// DefaultClock is the system clock; tests substitute a fixed clock
var DefaultClock Clock = systemClock{}

// ErrStaleCreationTimestamp is returned when a client-supplied creation
// timestamp falls outside the accepted freshness window
var ErrStaleCreationTimestamp = ValidationError("stale_creation_timestamp", "creation timestamp is outside the accepted freshness window")

// ValidCreationTimestamp returns true if the supplied unix timestamp falls
// within the accepted freshness window of now (both bounds inclusive)
func ValidCreationTimestamp(timestamp, now int64) bool {
	return timestamp >= now-CreationTimestampMaxAge && timestamp <= now+CreationTimestampMaxSkew
}
