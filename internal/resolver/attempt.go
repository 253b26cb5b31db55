// Package resolver implements the price-resolution cascades: FX rate over an
// ordered source list, the underlying price with a long-retention cache, and
// the local price with a theoretical last resort.
package resolver

import (
	"fmt"
	"strings"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// attempt records the outcome of one step of a fallback cascade. Failures are
// absorbed while the cascade runs; the attempts are logged as a single record
// once the cascade ends so every absorbed failure stays attributable.
type attempt struct {
	source string
	cached bool
	err    error
}

func (a attempt) String() string {
	switch {
	case a.err != nil:
		return fmt.Sprintf("%s: %v", a.source, a.err)
	case a.cached:
		return a.source + ": cache hit"
	default:
		return a.source + ": ok"
	}
}

// summarize joins a cascade's attempts into one log value.
func summarize(attempts []attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = a.String()
	}
	return strings.Join(parts, "; ")
}

// skipUnauthenticated reports whether a session-gated source should be passed
// over because access carries no valid session. Calling such a source would
// fail locally, so the cascade records the miss without a rate-limit grant.
func skipUnauthenticated(source any, access domain.Access) bool {
	gated, ok := source.(domain.SessionGated)
	if !ok || !gated.RequiresSession() {
		return false
	}
	_, haveSession := domain.SessionFrom(access)
	return !haveSession
}

// needsGrant reports whether the resolver must acquire a limiter grant before
// calling the source. Self-throttled sources pay for their own upstream
// traffic at the point where it actually happens.
func needsGrant(source any) bool {
	st, ok := source.(domain.SelfThrottled)
	return !ok || !st.ThrottlesOwnRequests()
}
