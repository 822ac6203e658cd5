package pool

import "time"

// SetClock replaces the pool's time source.
func SetClock(p *Pool, clock func() time.Time) {
	p.clock = clock
}
