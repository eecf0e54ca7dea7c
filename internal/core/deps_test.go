package core

import (
	"strings"
	"testing"

	"stockledger/testutil"
)

// Blob backends are reached through the facade package so driver selection
// stays in one place.
func TestCoreUsesBlobFacadeOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", func(ip string) bool {
		return strings.HasPrefix(ip, "stockledger/internal/infra/blob/")
	}, "core must import stockledger/internal/blob, not driver packages")
}
