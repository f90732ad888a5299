package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "idempotent-key:7:abc", Key(7, "abc"))
}

func TestGuard_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()

	var nilGuard *Guard
	assert.NoError(t, nilGuard.Acquire(ctx, 1, "k"))
	assert.NoError(t, nilGuard.Release(ctx, 1, "k"))
	assert.NoError(t, nilGuard.Ping(ctx))
	assert.NoError(t, nilGuard.Close())

	g := NewGuard(nil, time.Hour)
	assert.NoError(t, g.Acquire(ctx, 1, "k"))
	assert.NoError(t, g.Release(ctx, 1, "k"))
}
