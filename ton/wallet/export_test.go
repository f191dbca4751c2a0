package wallet

import "time"

// SetTimeNow - replaces clock used for expiration, returns func to restore it
func SetTimeNow(f func() time.Time) (restore func()) {
	prev := timeNow
	timeNow = f
	return func() {
		timeNow = prev
	}
}
