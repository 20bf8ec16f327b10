package clock

import "time"

// Clock abstracts wall time so services can be tested at fixed instants.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func System() Clock {
	return systemClock{}
}
