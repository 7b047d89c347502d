package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

func TestGuardEnablesTestMode(t *testing.T) {
	// The guard import sets MERIDIAN_TEST_MODE before this package's
	// init runs, so any binary entrypoint built into a test process
	// refuses to start its runtime.
	RefreshTestMode()
	require.True(t, InTestMode())
}
