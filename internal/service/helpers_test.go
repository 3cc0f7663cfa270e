package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skilldeck/skilldeck/internal/data"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	"github.com/skilldeck/skilldeck/internal/testutil"
)

const testPrefix = "test:"

// testClock is a FixedTimeProvider shared by the services and the memory cache
// so expiry and timestamps move together.
func testClock() *data.FixedTimeProvider {
	return data.NewFixedTimeProvider(testutil.TestTime())
}

func lookupOperation(t *testing.T, cat *skill.Catalog, skillID, opID string) (*skill.Skill, *skill.Operation) {
	t.Helper()
	sk, ok := cat.Skill(skillID)
	require.True(t, ok, "skill %s", skillID)
	op, ok := sk.Operation(opID)
	require.True(t, ok, "operation %s/%s", skillID, opID)
	return sk, op
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}
