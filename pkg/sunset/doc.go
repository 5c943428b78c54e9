// Package sunset provides a reusable library for retiring legacy API
// endpoints on a multi-phase deprecation schedule, with pluggable repository
// backends.
//
// It exposes a single Service interface whose Evaluate operation decides, on
// every call to a legacy endpoint, whether to let the call through, warn the
// caller, or reject it, based solely on durable facts (the endpoint's
// deprecation record and recent usage rows). There is no cached "current
// phase": the phase is recomputed from the clock on every request, so
// schedule edits and clock changes take effect immediately and identically
// across processes. Implementations of repositories (memory, Postgres) are
// provided under subpackages.
//
// # Phases
//
// An endpoint moves through an ordered set of phases as time passes:
// announced-but-pending, early warning (bounded monthly failures for
// anonymous callers), final warning (hard rejection for everyone), a
// post-sunset grace period (explanatory rejection), and finally retirement
// (not-found with long-lived caching). Callers may suppress warnings before
// the sunset instant with the deprecated=true query parameter; nothing
// suppresses the post-sunset phases.
package sunset
