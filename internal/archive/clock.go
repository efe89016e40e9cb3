package archive

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can age archives via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used to age the latest archive. Pass nil to
// reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
