package position

import (
	"testing"
	"time"

	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func order(id, side string, qty, price float64, minutes int) types.Order {
	return types.Order{
		OrderID:    id,
		UserID:     "user-1",
		AccountKey: "acct-1",
		Symbol:     "AAPL",
		Side:       side,
		Quantity:   qty,
		Price:      price,
		ExecutedAt: baseTime.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestTracker_OpensFromFlat(t *testing.T) {
	tr := NewTracker("user-1", "AAPL", "acct-1")
	require.Equal(t, StateFlat, tr.State())

	closed := tr.Apply(order("o1", types.SideBuy, 100, 10, 0))
	require.Nil(t, closed)
	assert.Equal(t, StateLong, tr.State())

	open := tr.Flush()
	require.NotNil(t, open)
	assert.Equal(t, types.SideLong, open.Side)
	assert.False(t, open.Closed())
	require.Len(t, open.Entries, 1)
	assert.Equal(t, "o1", open.Entries[0].Order.OrderID)
	assert.Equal(t, StateFlat, tr.State())
}

func TestTracker_SellFromFlatOpensShort(t *testing.T) {
	tr := NewTracker("user-1", "AAPL", "acct-1")

	require.Nil(t, tr.Apply(order("o1", types.SideSell, 20, 250, 0)))
	assert.Equal(t, StateShort, tr.State())

	open := tr.Flush()
	require.NotNil(t, open)
	assert.Equal(t, types.SideShort, open.Side)
}

func TestTracker_ScaleInAppendsEntries(t *testing.T) {
	tr := NewTracker("user-1", "AAPL", "acct-1")

	require.Nil(t, tr.Apply(order("o1", types.SideBuy, 100, 10, 0)))
	require.Nil(t, tr.Apply(order("o2", types.SideBuy, 50, 11, 5)))

	open := tr.Flush()
	require.NotNil(t, open)
	require.Len(t, open.Entries, 2)
	assert.Empty(t, open.Exits)
	assert.Equal(t, "o1", open.Entries[0].Order.OrderID)
	assert.Equal(t, "o2", open.Entries[1].Order.OrderID)
}

func TestTracker_PartialExitsKeepTradeOpen(t *testing.T) {
	tr := NewTracker("user-1", "AAPL", "acct-1")

	require.Nil(t, tr.Apply(order("o1", types.SideBuy, 100, 10, 0)))
	require.Nil(t, tr.Apply(order("o2", types.SideSell, 60, 12, 30)))
	assert.Equal(t, StateLong, tr.State())

	closed := tr.Apply(order("o3", types.SideSell, 40, 11, 60))
	require.NotNil(t, closed)
	assert.True(t, closed.Closed())
	assert.Equal(t, StateFlat, tr.State())

	require.Len(t, closed.Entries, 1)
	require.Len(t, closed.Exits, 2)
	assert.True(t, closed.Exits[0].Quantity.Equal(decimal.NewFromInt(60)))
	assert.True(t, closed.Exits[1].Quantity.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, baseTime.Add(60*time.Minute), *closed.ClosedAt)
}

func TestTracker_ExactOffsetCloses(t *testing.T) {
	tr := NewTracker("user-1", "AAPL", "acct-1")

	require.Nil(t, tr.Apply(order("o1", types.SideSell, 20, 250, 0)))
	closed := tr.Apply(order("o2", types.SideBuy, 20, 245, 90))

	require.NotNil(t, closed)
	assert.Equal(t, types.SideShort, closed.Side)
	assert.Equal(t, StateFlat, tr.State())
	assert.Nil(t, tr.Flush())
}

func TestTracker_FlipSplitsOrder(t *testing.T) {
	tr := NewTracker("user-1", "AAPL", "acct-1")

	require.Nil(t, tr.Apply(order("o1", types.SideBuy, 50, 10, 0)))
	closed := tr.Apply(order("o2", types.SideSell, 80, 12, 45))

	// The offsetting 50 closes the long.
	require.NotNil(t, closed)
	assert.True(t, closed.Closed())
	assert.Equal(t, types.SideLong, closed.Side)
	require.Len(t, closed.Exits, 1)
	assert.Equal(t, "o2", closed.Exits[0].Order.OrderID)
	assert.True(t, closed.Exits[0].Quantity.Equal(decimal.NewFromInt(50)))

	// The remaining 30 opens a short with the same order as first entry.
	assert.Equal(t, StateShort, tr.State())
	open := tr.Flush()
	require.NotNil(t, open)
	assert.Equal(t, types.SideShort, open.Side)
	require.Len(t, open.Entries, 1)
	assert.Equal(t, "o2", open.Entries[0].Order.OrderID)
	assert.True(t, open.Entries[0].Quantity.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, baseTime.Add(45*time.Minute), open.OpenedAt)
}

func TestTracker_FlipToExactClose(t *testing.T) {
	tr := NewTracker("user-1", "AAPL", "acct-1")

	require.Nil(t, tr.Apply(order("o1", types.SideBuy, 50, 10, 0)))
	first := tr.Apply(order("o2", types.SideSell, 80, 12, 30))
	require.NotNil(t, first)

	// Closing the 30 short from the flip remainder.
	second := tr.Apply(order("o3", types.SideBuy, 30, 11, 60))
	require.NotNil(t, second)
	assert.Equal(t, types.SideShort, second.Side)
	require.Len(t, second.Entries, 1)
	assert.True(t, second.Entries[0].Quantity.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, StateFlat, tr.State())
}

func TestTracker_FractionalQuantities(t *testing.T) {
	tr := NewTracker("user-1", "AAPL", "acct-1")

	require.Nil(t, tr.Apply(order("o1", types.SideBuy, 0.3, 50000, 0)))
	require.Nil(t, tr.Apply(order("o2", types.SideSell, 0.1, 51000, 10)))
	closed := tr.Apply(order("o3", types.SideSell, 0.2, 52000, 20))

	require.NotNil(t, closed)
	assert.True(t, closed.Closed())
	assert.Equal(t, StateFlat, tr.State())
}
