// Package auth implements the session token lifecycle and the three-tier
// access-control gate.
//
// Tokens are signed, self-contained HS256 JWTs valid for 24 hours. The
// privileged flag is resolved against the configured allow-list exactly once,
// at issuance; validation trusts the embedded value until expiry. Removing a
// handle from the allow-list therefore takes effect only as existing tokens
// expire. That latency is accepted, not a bug.
//
// The identity resolved for a request travels in its context.Context, set by
// the transport layer before any gated operation runs. A process-global
// "current user" slot would race under concurrent requests; the context
// value is scoped to one request by construction.
//
// Gating is a single pure decision point:
//
//	identity, err := auth.Require(ctx, auth.TierPrivileged)
//	if err != nil {
//	    return toolError(err)
//	}
//
// All token validation failures (bad signature, expiry, malformed input)
// collapse into the same "no identity" outcome so that callers cannot be
// used as an oracle for guessing valid token shapes.
package auth
