package hub

import "time"

// Clock abstracts time so sweeps and TTL checks are testable with a fake.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the production clock.
var SystemClock Clock = realClock{}
