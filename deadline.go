package ldap

import (
	"context"
	"time"
)

// effectiveDeadline applies a simple precedence chain: an explicit
// per-call override wins, then the phase-specific Config timeout
// (e.g. ReadOperationTimeout), then the connection-wide Config.Timeout.
// 0 falls through to the next tier; Infinite (-1) is returned as soon as it
// is met at any tier. contextForDeadline treats Infinite, and a resolved
// value of 0 (every tier left at its zero value), as "no deadline" rather
// than "expire immediately".
func effectiveDeadline(override, phase, global time.Duration) time.Duration {
	if override != 0 {
		return override
	}
	if phase != 0 {
		return phase
	}
	return global
}

// contextForDeadline derives a context bounded by d, or an undeadlined child
// of parent when d is Infinite or unset. Every blocking operation facade
// (Bind, the single-shot operations, Search) uses this so that an expired
// deadline and a cancelled parent context are observed identically: via
// ctx.Done() racing the response channel, followed by an abandon of the
// in-flight message id.
func contextForDeadline(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d == Infinite || d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
