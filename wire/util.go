package wire

import (
	"math/rand/v2"
	"time"
)

// shortHash safely returns up to the first 8 characters of a string (or the full string if shorter)
func shortHash(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

// randomDelay returns a random duration between min and max
func randomDelay(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}
	return min + rand.N(max-min)
}

// randomRSSI returns a plausible signal strength in dBm
func randomRSSI() int {
	return -40 - rand.IntN(50)
}
