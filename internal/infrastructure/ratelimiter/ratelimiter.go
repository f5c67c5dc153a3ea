package ratelimiter

import "time"

type Limiter interface {
	// Allow reports whether the caller identified by key may proceed and, if
	// not, how long until it may try again.
	Allow(key string) (bool, time.Duration)
}
