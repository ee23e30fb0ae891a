package tool

import (
	"time"
)

func MakeTimestamp() int64 {
	return time.Now().UnixMilli()
}

// MillisOrDefault converts a millisecond config value, falling back to def
// when the value is unset.
func MillisOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// SecondsOrDefault converts a second config value, falling back to def when
// the value is unset.
func SecondsOrDefault(s int, def time.Duration) time.Duration {
	if s <= 0 {
		return def
	}
	return time.Duration(s) * time.Second
}
