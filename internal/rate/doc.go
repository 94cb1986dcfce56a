// Package rate implements the Redis-backed failed-login counter used
// to slow down credential brute forcing. It is internal: the engine
// owns the policy (thresholds, fail-open behavior), this package only
// owns the counters.
package rate
