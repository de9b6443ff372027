package appctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/pkg/config"
)

func TestWithConfig_RoundTrips(t *testing.T) {
	manager := config.NewManager()
	ctx := WithConfig(context.Background(), manager)

	retrieved, ok := Config(ctx)
	require.True(t, ok)
	assert.Same(t, manager, retrieved)
}

func TestWithConfig_NilContext(t *testing.T) {
	manager := config.NewManager()
	//nolint:staticcheck
	ctx := WithConfig(nil, manager)

	retrieved, ok := Config(ctx)
	require.True(t, ok)
	assert.Same(t, manager, retrieved)
}

func TestConfig_MissingReturnsFalse(t *testing.T) {
	_, ok := Config(context.Background())
	assert.False(t, ok)
}

func TestConfig_NilContextReturnsFalse(t *testing.T) {
	//nolint:staticcheck
	_, ok := Config(nil)
	assert.False(t, ok)
}

func TestConfig_NilManagerReturnsFalse(t *testing.T) {
	ctx := context.WithValue(context.Background(), configKey, (*config.Manager)(nil))
	_, ok := Config(ctx)
	assert.False(t, ok)
}

func TestConfig_WrongTypeReturnsFalse(t *testing.T) {
	ctx := context.WithValue(context.Background(), configKey, "not a manager")
	_, ok := Config(ctx)
	assert.False(t, ok)
}
