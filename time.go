package mofs

import "time"

// nowUnix returns the current time as whole seconds since the epoch.
// Access-time precision finer than a second is explicitly out of scope.
func nowUnix() int64 {
	return time.Now().Unix()
}
