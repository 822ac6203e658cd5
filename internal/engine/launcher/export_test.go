package launcher

import "time"

// SetShutdownGrace overrides how long Close waits before killing a worker.
func SetShutdownGrace(d time.Duration) func() {
	prev := shutdownGrace
	shutdownGrace = d
	return func() { shutdownGrace = prev }
}
