package store

import "time"

// wallClockMillis is the production time source for Clock; isolated in its
// own file so tests never need to touch real wall-clock time.
func wallClockMillis() int64 {
	return time.Now().UTC().UnixMilli()
}
