package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClaimLimiter_DisabledWithoutRedisOrLimit(t *testing.T) {
	assert.Nil(t, NewClaimLimiter(nil, 60))
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var limiter *ClaimLimiter
	ok, err := limiter.Allow(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)
}
