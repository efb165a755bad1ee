package utils

import "time"

// CurrentUTCTime returns the current time in UTC, the timezone all
// catalog timestamps are stored in.
func CurrentUTCTime() time.Time {
	return time.Now().UTC()
}
