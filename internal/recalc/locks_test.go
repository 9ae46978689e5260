package recalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeGuard_UserScopeIsExclusive(t *testing.T) {
	g := newScopeGuard()

	release, err := g.acquireUser("user-1")
	require.NoError(t, err)

	_, err = g.acquireUser("user-1")
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	release()

	release2, err := g.acquireUser("user-1")
	require.NoError(t, err)
	release2()
}

func TestScopeGuard_UserScopeConflictsWithGroupScope(t *testing.T) {
	g := newScopeGuard()

	release, err := g.acquireGroups("user-1", []string{"AAPL|acct-1"})
	require.NoError(t, err)

	_, err = g.acquireUser("user-1")
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	release()

	releaseUser, err := g.acquireUser("user-1")
	require.NoError(t, err)

	_, err = g.acquireGroups("user-1", []string{"TSLA|acct-2"})
	assert.ErrorIs(t, err, ErrRebuildInProgress)
	releaseUser()
}

func TestScopeGuard_DisjointGroupsDoNotConflict(t *testing.T) {
	g := newScopeGuard()

	release1, err := g.acquireGroups("user-1", []string{"AAPL|acct-1"})
	require.NoError(t, err)
	defer release1()

	release2, err := g.acquireGroups("user-1", []string{"TSLA|acct-2"})
	require.NoError(t, err)
	defer release2()

	_, err = g.acquireGroups("user-1", []string{"MSFT|acct-1", "AAPL|acct-1"})
	assert.ErrorIs(t, err, ErrRebuildInProgress)
}

func TestScopeGuard_GroupAcquisitionIsAllOrNothing(t *testing.T) {
	g := newScopeGuard()

	release, err := g.acquireGroups("user-1", []string{"AAPL|acct-1"})
	require.NoError(t, err)

	_, err = g.acquireGroups("user-1", []string{"MSFT|acct-1", "AAPL|acct-1"})
	require.ErrorIs(t, err, ErrRebuildInProgress)

	// The failed acquisition must not have left MSFT held.
	releaseMSFT, err := g.acquireGroups("user-1", []string{"MSFT|acct-1"})
	require.NoError(t, err)
	releaseMSFT()
	release()
}

func TestScopeGuard_UsersAreIndependent(t *testing.T) {
	g := newScopeGuard()

	release, err := g.acquireUser("user-1")
	require.NoError(t, err)
	defer release()

	release2, err := g.acquireGroups("user-2", []string{"AAPL|acct-1"})
	require.NoError(t, err)
	release2()
}
