package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  req-1 ")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestActorMissing(t *testing.T) {
	role, id := ActorFromContext(context.Background())
	assert.Empty(t, role)
	assert.Empty(t, id)

	role, id = ActorFromContext(WithActor(context.Background(), "client", "42"))
	assert.Equal(t, "client", role)
	assert.Equal(t, "42", id)
}
