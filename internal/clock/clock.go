package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts the current time so billing jobs can run against an
// explicit as-of date.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
