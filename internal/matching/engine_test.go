package matching

import (
	"testing"
	"time"

	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func order(id, symbol, accountKey, side string, qty, price float64, minutes int, seq int64) types.Order {
	return types.Order{
		OrderID:        id,
		UserID:         "user-1",
		AccountKey:     accountKey,
		Symbol:         symbol,
		Side:           side,
		Quantity:       qty,
		Price:          price,
		ExecutedAt:     baseTime.Add(time.Duration(minutes) * time.Minute),
		ImportSequence: seq,
	}
}

func TestEngine_GroupsMatchIndependently(t *testing.T) {
	engine := NewEngine()

	result := engine.Run("user-1", []types.Order{
		order("a1", "AAPL", "acct-1", types.SideBuy, 100, 10, 0, 1),
		order("t1", "TSLA", "acct-2", types.SideSell, 20, 250, 5, 2),
		order("a2", "AAPL", "acct-1", types.SideSell, 100, 12, 30, 3),
		order("t2", "TSLA", "acct-2", types.SideBuy, 20, 245, 60, 4),
	})

	require.Len(t, result.Instances, 2)
	assert.Empty(t, result.Diagnostics)
	for _, inst := range result.Instances {
		assert.True(t, inst.Closed())
	}
}

func TestEngine_SameSymbolDifferentAccounts(t *testing.T) {
	engine := NewEngine()

	// Same symbol on two accounts must not offset each other.
	result := engine.Run("user-1", []types.Order{
		order("o1", "AAPL", "acct-1", types.SideBuy, 100, 10, 0, 1),
		order("o2", "AAPL", "acct-2", types.SideSell, 100, 10, 5, 2),
	})

	require.Len(t, result.Instances, 2)
	for _, inst := range result.Instances {
		assert.False(t, inst.Closed())
	}
}

func TestEngine_UnsortedInputReplaysChronologically(t *testing.T) {
	engine := NewEngine()

	// Exit arrives before entry in slice order; chronology must win.
	result := engine.Run("user-1", []types.Order{
		order("o2", "AAPL", "acct-1", types.SideSell, 100, 12, 30, 2),
		order("o1", "AAPL", "acct-1", types.SideBuy, 100, 10, 0, 1),
	})

	require.Len(t, result.Instances, 1)
	inst := result.Instances[0]
	require.True(t, inst.Closed())
	assert.Equal(t, "o1", inst.Entries[0].Order.OrderID)
	assert.Equal(t, "o2", inst.Exits[0].Order.OrderID)
}

func TestEngine_EqualTimestampsTieBreakOnImportSequence(t *testing.T) {
	engine := NewEngine()

	// Both executions carry the same timestamp; the lower import sequence is
	// the entry because it was uploaded first.
	result := engine.Run("user-1", []types.Order{
		order("second", "AAPL", "acct-1", types.SideSell, 100, 12, 0, 8),
		order("first", "AAPL", "acct-1", types.SideBuy, 100, 10, 0, 7),
	})

	require.Len(t, result.Instances, 1)
	inst := result.Instances[0]
	require.True(t, inst.Closed())
	assert.Equal(t, types.SideLong, inst.Side)
	assert.Equal(t, "first", inst.Entries[0].Order.OrderID)
}

func TestEngine_MalformedOrdersSkippedWithDiagnostics(t *testing.T) {
	engine := NewEngine()

	result := engine.Run("user-1", []types.Order{
		order("bad-qty", "AAPL", "acct-1", types.SideBuy, 0, 10, 0, 1),
		order("bad-price", "AAPL", "acct-1", types.SideBuy, 10, 0, 1, 2),
		order("bad-side", "AAPL", "acct-1", "HOLD", 10, 10, 2, 3),
		order("o1", "AAPL", "acct-1", types.SideBuy, 100, 10, 5, 4),
		order("o2", "AAPL", "acct-1", types.SideSell, 100, 12, 30, 5),
	})

	// The good pair still matches.
	require.Len(t, result.Instances, 1)
	assert.True(t, result.Instances[0].Closed())

	require.Len(t, result.Diagnostics, 3)
	reasons := map[string]string{}
	for _, d := range result.Diagnostics {
		reasons[d.OrderID] = d.Reason
		assert.Equal(t, "user-1", d.UserID)
		assert.Equal(t, "AAPL", d.Symbol)
	}
	assert.Equal(t, "non_positive_quantity", reasons["bad-qty"])
	assert.Equal(t, "non_positive_price", reasons["bad-price"])
	assert.Equal(t, "unknown_side", reasons["bad-side"])
}

func TestEngine_FlipEmitsClosedAndOpenInstance(t *testing.T) {
	engine := NewEngine()

	result := engine.Run("user-1", []types.Order{
		order("o1", "MSFT", "acct-1", types.SideBuy, 50, 10, 0, 1),
		order("o2", "MSFT", "acct-1", types.SideSell, 80, 12, 30, 2),
	})

	require.Len(t, result.Instances, 2)

	var closed, open int
	for _, inst := range result.Instances {
		if inst.Closed() {
			closed++
			assert.Equal(t, types.SideLong, inst.Side)
		} else {
			open++
			assert.Equal(t, types.SideShort, inst.Side)
		}
	}
	assert.Equal(t, 1, closed)
	assert.Equal(t, 1, open)
}

func TestGroups_DistinctAndSorted(t *testing.T) {
	groups := Groups([]types.Order{
		order("o1", "TSLA", "acct-2", types.SideBuy, 1, 1, 0, 1),
		order("o2", "AAPL", "acct-1", types.SideBuy, 1, 1, 0, 2),
		order("o3", "TSLA", "acct-2", types.SideSell, 1, 1, 0, 3),
		order("o4", "AAPL", "acct-2", types.SideBuy, 1, 1, 0, 4),
	})

	require.Equal(t, []Group{
		{Symbol: "AAPL", AccountKey: "acct-1"},
		{Symbol: "AAPL", AccountKey: "acct-2"},
		{Symbol: "TSLA", AccountKey: "acct-2"},
	}, groups)
}
