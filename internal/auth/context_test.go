package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityFromContextEmpty(t *testing.T) {
	assert.Nil(t, IdentityFromContext(context.Background()))
}

func TestWithIdentityRoundTrip(t *testing.T) {
	identity := &Identity{UserID: 42, Username: "alice"}
	ctx := WithIdentity(context.Background(), identity)
	assert.Same(t, identity, IdentityFromContext(ctx))
}

func TestWithIdentityNilResetsSlot(t *testing.T) {
	ctx := WithIdentity(context.Background(), &Identity{Username: "alice"})
	ctx = WithIdentity(ctx, nil)
	assert.Nil(t, IdentityFromContext(ctx))
}

func TestIdentityScopedPerContext(t *testing.T) {
	base := context.Background()
	ctxA := WithIdentity(base, &Identity{Username: "alice"})
	ctxB := WithIdentity(base, &Identity{Username: "bob"})

	assert.Equal(t, "alice", IdentityFromContext(ctxA).Username)
	assert.Equal(t, "bob", IdentityFromContext(ctxB).Username)
	assert.Nil(t, IdentityFromContext(base))
}
