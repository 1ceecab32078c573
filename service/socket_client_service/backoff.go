package socket_client_service

import "time"

// Backoff 指数退避：initial, initial*2, ... 封顶 max，连接成功后 Reset
type Backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	return &Backoff{initial: initial, max: max, next: initial}
}

// Next returns the delay for the upcoming attempt and doubles the one after it.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

func (b *Backoff) Reset() {
	b.next = b.initial
}
