// Package timebase converts between tick counts and time.Duration using
// the fixed DVD_TIME_BASE resolution the rest of the audio core shares.
package timebase

import "time"

// Base is the number of ticks per second used by every timestamp and
// duration that crosses a package boundary in the audio core.
const Base int64 = 1000000

// NoPTS marks a timestamp as unknown, mirroring DVD_NOPTS_VALUE.
const NoPTS int64 = -1

// FromDuration converts a time.Duration to ticks.
func FromDuration(d time.Duration) int64 {
	return int64(d) * Base / int64(time.Second)
}

// ToDuration converts ticks to a time.Duration.
func ToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * time.Second / time.Duration(Base)
}

// FromMillis converts milliseconds to ticks.
func FromMillis(ms int64) int64 {
	return ms * Base / 1000
}

// ToMillis converts ticks to milliseconds.
func ToMillis(ticks int64) int64 {
	return ticks * 1000 / Base
}
