package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time for decision timestamps so tests can pin it.
type Clock interface {
	Now() time.Time
}

var Module = fx.Provide(NewSystemClock)

type SystemClock struct{}

func NewSystemClock() Clock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
