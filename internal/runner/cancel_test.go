package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelRegistry(t *testing.T) {
	r := NewCancelRegistry()
	assert.False(t, r.Cancel("c1"))

	ctx, release := r.Register(context.Background(), "c1")
	assert.True(t, r.Running("c1"))
	assert.True(t, r.Cancel("c1"))
	<-ctx.Done()

	release()
	release()
	assert.False(t, r.Running("c1"))
}

func TestCancelRegistrySupersedes(t *testing.T) {
	r := NewCancelRegistry()
	first, releaseFirst := r.Register(context.Background(), "c1")
	second, releaseSecond := r.Register(context.Background(), "c1")
	defer releaseSecond()

	<-first.Done()
	assert.NoError(t, second.Err())

	releaseFirst()
	assert.True(t, r.Running("c1"), "a stale release must not drop the newer turn")
}
