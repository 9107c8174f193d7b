package boardio

import "time"

// retryValue calls fn up to attempts times, sleeping delay between
// attempts, until fn reports a value. It returns the value and true as
// soon as one is available, or the zero value and false once the attempt
// budget is exhausted. The delay is a fixed settling pause, not a backoff:
// the sample source is a polling task that needs wall time, not a
// congested peer.
func retryValue[T any](attempts int, delay time.Duration, fn func() (T, bool)) (T, bool) {
	var zero T
	for i := 0; i < attempts; i++ {
		if v, ok := fn(); ok {
			return v, true
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return zero, false
}
