package port

import (
	"runtime"
	"time"
)

// sleepThreshold is the shortest delay handed over to the scheduler.
// Below it time.Sleep overshoots by far more than the protocol tolerates.
const sleepThreshold = 2 * time.Millisecond

// Delay waits at least d.
// Long delays sleep most of the time and spin the remainder, short delays spin on the monotonic clock.
func Delay(d time.Duration) {
	if d <= 0 {
		return
	}

	deadline := time.Now().Add(d)
	if d > sleepThreshold {
		time.Sleep(d - sleepThreshold)
	}

	for time.Now().Before(deadline) {
		if time.Until(deadline) > sleepThreshold/2 {
			runtime.Gosched()
		}
	}
}
