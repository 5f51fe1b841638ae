package session

import "time"

// Backoff produces exponentially increasing reconnect delays: base, 2x,
// 4x... capped at max. Reset returns it to the base interval.
type Backoff struct {
	base     time.Duration
	max      time.Duration
	attempts int
}

func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max}
}

// Next returns the delay before the next attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	delay := b.base << b.attempts
	if delay > b.max || delay <= 0 {
		delay = b.max
	} else {
		b.attempts++
	}
	return delay
}

// Reset clears the attempt counter after a successful connection.
func (b *Backoff) Reset() {
	b.attempts = 0
}
