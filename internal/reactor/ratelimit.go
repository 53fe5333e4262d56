package reactor

import "golang.org/x/time/rate"

// rateLimiter bounds how fast the accept loop pulls new connections
// off the listen backlog, using golang.org/x/time/rate's standard
// token bucket so a connection flood degrades into queued backlog
// rather than an unbounded goroutine-per-accept spike.
type rateLimiter struct {
	l *rate.Limiter
}

func newRateLimiter(cfg Config) *rateLimiter {
	return &rateLimiter{l: limiterFor(cfg)}
}

// Allow reports whether the accept loop may pull one more connection
// right now.
func (r *rateLimiter) Allow() bool {
	return r.l.Allow()
}
