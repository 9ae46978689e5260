package aggregate

import (
	"testing"
	"time"

	"github.com/PettyFoot/stonks-two-sub010/internal/position"
	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func order(id, side string, qty, price, commission, fees float64, at time.Time) types.Order {
	return types.Order{
		OrderID:       id,
		UserID:        "user-1",
		AccountKey:    "acct-1",
		Symbol:        "AAPL",
		Side:          side,
		Quantity:      qty,
		Price:         price,
		Commission:    commission,
		Fees:          fees,
		ExecutedAt:    at,
		ImportBatchID: "batch-1",
	}
}

// replay runs orders through a fresh tracker and returns all instances,
// closed ones first in replay order, an open one last.
func replay(t *testing.T, orders ...types.Order) []*position.Instance {
	t.Helper()
	tr := position.NewTracker("user-1", "AAPL", "acct-1")
	var instances []*position.Instance
	for _, o := range orders {
		if closed := tr.Apply(o); closed != nil {
			instances = append(instances, closed)
		}
	}
	if open := tr.Flush(); open != nil {
		instances = append(instances, open)
	}
	require.NotEmpty(t, instances)
	return instances
}

func TestBuild_PartialExitsWeightedPrices(t *testing.T) {
	loc := newYork(t)
	agg, err := NewAggregator("America/New_York")
	require.NoError(t, err)

	open := time.Date(2024, 3, 4, 10, 30, 0, 0, loc)
	instances := replay(t,
		order("o1", types.SideBuy, 100, 10, 1, 0, open),
		order("o2", types.SideSell, 60, 12, 1, 0, open.Add(30*time.Minute)),
		order("o3", types.SideSell, 40, 11, 1, 0, open.Add(60*time.Minute)),
	)
	require.Len(t, instances, 1)

	trade := agg.Build(instances[0])
	assert.Equal(t, types.StatusClosed, trade.Status)
	assert.Equal(t, types.SideLong, trade.Side)
	assert.Equal(t, 10.0, trade.EntryPrice)
	require.NotNil(t, trade.ExitPrice)
	assert.Equal(t, 11.6, *trade.ExitPrice)
	assert.Equal(t, 100.0, trade.Quantity)
	// (11.6 - 10) * 100 minus three 1.00 commissions
	assert.Equal(t, 157.0, trade.Pnl)
	assert.Equal(t, 3.0, trade.Commission)
	assert.Equal(t, int64(3600), trade.HoldingPeriodSec)
	assert.Equal(t, "o1", trade.EntryOrderID)
	assert.Equal(t, SessionRegular, trade.MarketSession)
	assert.JSONEq(t, `["o1","o2","o3"]`, trade.OrderIDs)
}

func TestBuild_ShortPnlSign(t *testing.T) {
	loc := newYork(t)
	agg, err := NewAggregator("America/New_York")
	require.NoError(t, err)

	open := time.Date(2024, 3, 4, 11, 0, 0, 0, loc)
	instances := replay(t,
		order("o1", types.SideSell, 20, 250, 0, 0.4, open),
		order("o2", types.SideBuy, 20, 245, 0, 0.4, open.Add(90*time.Minute)),
	)
	require.Len(t, instances, 1)

	trade := agg.Build(instances[0])
	assert.Equal(t, types.SideShort, trade.Side)
	// Short profits when entry outvalues exit: (250 - 245) * 20 - 0.8
	assert.Equal(t, 99.2, trade.Pnl)
	assert.Equal(t, 0.8, trade.Fees)
	assert.Equal(t, int64(5400), trade.HoldingPeriodSec)
}

func TestBuild_FlipProratesCosts(t *testing.T) {
	loc := newYork(t)
	agg, err := NewAggregator("America/New_York")
	require.NoError(t, err)

	open := time.Date(2024, 3, 4, 10, 0, 0, 0, loc)
	instances := replay(t,
		order("o1", types.SideBuy, 50, 10, 0.5, 0, open),
		order("o2", types.SideSell, 80, 12, 0.8, 0, open.Add(30*time.Minute)),
	)
	require.Len(t, instances, 2)

	closed := agg.Build(instances[0])
	require.Equal(t, types.StatusClosed, closed.Status)
	assert.Equal(t, types.SideLong, closed.Side)
	assert.Equal(t, 10.0, closed.EntryPrice)
	require.NotNil(t, closed.ExitPrice)
	assert.Equal(t, 12.0, *closed.ExitPrice)
	assert.Equal(t, 50.0, closed.Quantity)
	// Gross (12-10)*50 minus 0.5 entry commission and 50/80 of the exit's 0.8
	assert.Equal(t, 99.0, closed.Pnl)

	short := agg.Build(instances[1])
	assert.Equal(t, types.StatusOpen, short.Status)
	assert.Equal(t, types.SideShort, short.Side)
	assert.Equal(t, 12.0, short.EntryPrice)
	assert.Nil(t, short.ExitPrice)
	assert.Equal(t, 30.0, short.Quantity)
	assert.Equal(t, 0.0, short.Pnl)
	// The flip remainder carries the other 30/80 of the order's commission.
	assert.Equal(t, 0.3, short.Commission)
	assert.Equal(t, "o2", short.EntryOrderID)
}

func TestBuild_OpenTradeHasNoExitFields(t *testing.T) {
	loc := newYork(t)
	agg, err := NewAggregator("America/New_York")
	require.NoError(t, err)

	open := time.Date(2024, 3, 4, 10, 0, 0, 0, loc)
	instances := replay(t,
		order("o1", types.SideBuy, 100, 10, 0, 0, open),
		order("o2", types.SideBuy, 50, 12, 0, 0, open.Add(10*time.Minute)),
	)
	require.Len(t, instances, 1)

	trade := agg.Build(instances[0])
	assert.Equal(t, types.StatusOpen, trade.Status)
	assert.Nil(t, trade.ExitPrice)
	assert.Nil(t, trade.ClosedAt)
	assert.Equal(t, int64(0), trade.HoldingPeriodSec)
	// Weighted entry over both lots: (100*10 + 50*12) / 150
	assert.Equal(t, 10.6667, trade.EntryPrice)
	assert.Equal(t, 150.0, trade.Quantity)
}

func TestClassifySession(t *testing.T) {
	loc := newYork(t)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"pre-market", time.Date(2024, 3, 4, 8, 0, 0, 0, loc), SessionPreMarket},
		{"regular open boundary", time.Date(2024, 3, 4, 9, 30, 0, 0, loc), SessionRegular},
		{"regular", time.Date(2024, 3, 4, 12, 0, 0, 0, loc), SessionRegular},
		{"after-hours boundary", time.Date(2024, 3, 4, 16, 0, 0, 0, loc), SessionAfterHours},
		{"after-hours", time.Date(2024, 3, 4, 19, 59, 0, 0, loc), SessionAfterHours},
		{"late night", time.Date(2024, 3, 4, 22, 0, 0, 0, loc), SessionClosed},
		{"before pre-market", time.Date(2024, 3, 4, 3, 30, 0, 0, loc), SessionClosed},
		{"saturday", time.Date(2024, 3, 9, 12, 0, 0, 0, loc), SessionClosed},
		{"utc timestamp converted", time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC), SessionRegular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySession(tt.at, loc))
		})
	}
}
