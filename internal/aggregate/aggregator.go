package aggregate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/PettyFoot/stonks-two-sub010/internal/position"
	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/shopspring/decimal"
)

// priceScale is the decimal precision kept when crossing back into the float64
// columns of the persistence layer.
const priceScale = 4

// Aggregator converts matched trade instances into persistable trades:
// weighted entry/exit prices, PnL net of costs, holding period and market
// session.
type Aggregator struct {
	loc *time.Location
}

// NewAggregator creates an aggregator classifying sessions in the given
// market timezone.
func NewAggregator(marketTimezone string) (*Aggregator, error) {
	loc, err := time.LoadLocation(marketTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market timezone %q: %w", marketTimezone, err)
	}
	return &Aggregator{loc: loc}, nil
}

// Build computes the trade for a finalized or still-open instance. TradeRef is
// left empty; identity assignment is the recalculation controller's concern.
func (a *Aggregator) Build(inst *position.Instance) types.Trade {
	entryQty, entryAmount := consumedTotals(inst.Entries)
	exitQty, exitAmount := consumedTotals(inst.Exits)
	commission, fees := proratedCosts(inst)

	trade := types.Trade{
		UserID:         inst.UserID,
		Symbol:         inst.Symbol,
		AccountKey:     inst.AccountKey,
		Side:           inst.Side,
		EntryPrice:     weightedPrice(entryAmount, entryQty),
		Quantity:       roundFloat(entryQty),
		Commission:     roundFloat(commission),
		Fees:           roundFloat(fees),
		Status:         types.StatusOpen,
		OpenedAt:       inst.OpenedAt,
		MarketSession:  ClassifySession(inst.OpenedAt, a.loc),
		EntryOrderID:   inst.Entries[0].Order.OrderID,
		OrderIDs:       jsonIDs(orderIDs(inst)),
		ImportBatchIDs: jsonIDs(batchIDs(inst)),
		Tags:           "[]",
	}

	if inst.Closed() {
		trade.Status = types.StatusClosed
		trade.ClosedAt = inst.ClosedAt
		trade.HoldingPeriodSec = int64(inst.ClosedAt.Sub(inst.OpenedAt) / time.Second)

		exitPrice := weightedPrice(exitAmount, exitQty)
		trade.ExitPrice = &exitPrice

		// PnL from gross consumed amounts rather than rounded averages:
		// long profits when exits outvalue entries, short when the reverse.
		gross := exitAmount.Sub(entryAmount)
		if inst.Side == types.SideShort {
			gross = entryAmount.Sub(exitAmount)
		}
		trade.Pnl = roundFloat(gross.Sub(commission).Sub(fees))
	}

	return trade
}

// consumedTotals sums lot quantities and quantity-weighted amounts.
func consumedTotals(lots []position.Lot) (qty, amount decimal.Decimal) {
	for _, lot := range lots {
		qty = qty.Add(lot.Quantity)
		amount = amount.Add(lot.Quantity.Mul(decimal.NewFromFloat(lot.Order.Price)))
	}
	return qty, amount
}

// proratedCosts charges each constituent order's commission and fees in
// proportion to the quantity this instance consumed. A flip order is split
// across two trades, so each trade carries only its consumed share.
func proratedCosts(inst *position.Instance) (commission, fees decimal.Decimal) {
	lots := make([]position.Lot, 0, len(inst.Entries)+len(inst.Exits))
	lots = append(lots, inst.Entries...)
	lots = append(lots, inst.Exits...)

	for _, lot := range lots {
		orderQty := decimal.NewFromFloat(lot.Order.Quantity)
		if orderQty.IsZero() {
			continue
		}
		fraction := lot.Quantity.Div(orderQty)
		commission = commission.Add(decimal.NewFromFloat(lot.Order.Commission).Mul(fraction))
		fees = fees.Add(decimal.NewFromFloat(lot.Order.Fees).Mul(fraction))
	}
	return commission, fees
}

func weightedPrice(amount, qty decimal.Decimal) float64 {
	if qty.IsZero() {
		return 0
	}
	return roundFloat(amount.Div(qty))
}

func roundFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(priceScale).Float64()
	return f
}

func orderIDs(inst *position.Instance) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, lot := range append(append([]position.Lot{}, inst.Entries...), inst.Exits...) {
		if _, ok := seen[lot.Order.OrderID]; ok {
			continue
		}
		seen[lot.Order.OrderID] = struct{}{}
		ids = append(ids, lot.Order.OrderID)
	}
	return ids
}

func batchIDs(inst *position.Instance) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, lot := range append(append([]position.Lot{}, inst.Entries...), inst.Exits...) {
		if _, ok := seen[lot.Order.ImportBatchID]; ok {
			continue
		}
		seen[lot.Order.ImportBatchID] = struct{}{}
		ids = append(ids, lot.Order.ImportBatchID)
	}
	return ids
}

func jsonIDs(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(b)
}
