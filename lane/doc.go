// Package lane runs the same request over two lanes: a pinned lane that
// goes through pinnedhttp and stays on one interface class, and a default
// lane that lets the operating system route it.
//
// Compare shows side by side which interface each lane actually used:
//
//	runner := lane.NewRunner()
//	cmp := runner.Compare(ctx, pinnedhttp.Get("https://api.github.com/zen"))
//	fmt.Printf("pinned=%s default=%s\n", cmp.Pinned.Used, cmp.Default.Used)
//
// Retries (cenkalti/backoff), a circuit breaker per lane (sony/gobreaker) and
// a shared rate limit (x/time/rate) are opt-in through options. Neither lane
// ever retries an invalid target or a cancelled request.
package lane
