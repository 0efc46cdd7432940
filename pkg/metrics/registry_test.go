package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRegistry_Idempotent(t *testing.T) {
	InitRegistry()
	first := GetRegistry()
	require.NotNil(t, first)

	InitRegistry()
	assert.Same(t, first, GetRegistry())
	assert.True(t, IsEnabled())
}
