package idjourney

import "time"

// Clock supplies the current time to every expiry, grace, and idle-timeout
// decision in the engine, so tests can advance it deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock Clock used in production.
func SystemClock() Clock { return systemClock{} }
