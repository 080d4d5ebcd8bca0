package auth

import (
	"context"
	"errors"
	"fmt"
)

// Tier is the minimum proof an operation requires.
type Tier int

const (
	// TierPublic operations run unconditionally; an ambient identity is
	// available but not required.
	TierPublic Tier = iota
	// TierAuthenticated operations require a valid identity.
	TierAuthenticated
	// TierPrivileged operations require a valid identity on the privileged
	// allow-list.
	TierPrivileged
)

// String makes Tier satisfy fmt.Stringer.
func (t Tier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierAuthenticated:
		return "authenticated"
	case TierPrivileged:
		return "privileged"
	default:
		return "unknown"
	}
}

// ErrAuthenticationRequired is returned when a tier-2 or tier-3 operation is
// invoked with no identity present.
var ErrAuthenticationRequired = errors.New("authentication required: please log in with GitHub")

// PrivilegedAccessError is returned when an authenticated but non-privileged
// caller invokes a tier-3 operation. It is distinct from
// ErrAuthenticationRequired so clients can tell "log in" apart from "ask an
// administrator".
type PrivilegedAccessError struct {
	Username string
}

// Error implements the error interface.
func (e *PrivilegedAccessError) Error() string {
	return fmt.Sprintf("privileged access required: user %q does not have permission to perform this operation", e.Username)
}

// Require checks the ambient identity in ctx against the required tier.
// It returns the identity (nil for anonymous public callers) or the error
// the caller must surface. The presence check runs before the privilege
// check so the more specific failure wins.
//
// Require neither mutates the identity nor performs I/O; it is a pure
// decision over the request context.
func Require(ctx context.Context, tier Tier) (*Identity, error) {
	identity := IdentityFromContext(ctx)

	switch tier {
	case TierPublic:
		return identity, nil
	case TierAuthenticated:
		if identity == nil {
			return nil, ErrAuthenticationRequired
		}
		return identity, nil
	case TierPrivileged:
		if identity == nil {
			return nil, ErrAuthenticationRequired
		}
		if !identity.IsPrivileged {
			return nil, &PrivilegedAccessError{Username: identity.Username}
		}
		return identity, nil
	default:
		return nil, fmt.Errorf("unknown access tier %d", tier)
	}
}
