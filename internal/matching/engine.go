package matching

import (
	"sort"

	"github.com/PettyFoot/stonks-two-sub010/internal/metrics"
	"github.com/PettyFoot/stonks-two-sub010/internal/position"
	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/rs/zerolog/log"
)

// Group identifies one independently matched order stream.
type Group struct {
	Symbol     string
	AccountKey string
}

// Result is everything one matching pass produced: finalized and still-open
// trade instances plus a diagnostic per skipped order. One malformed order
// never aborts its group or any other group.
type Result struct {
	Instances   []*position.Instance
	Diagnostics []types.Diagnostic
}

// Engine replays a user's orders chronologically through per-group position
// trackers. It is stateless; every Run builds fresh trackers.
type Engine struct{}

// NewEngine creates a matching engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Run matches all given orders for one user. Orders may arrive in any order
// and spanning any number of groups; each (symbol, accountKey) group is sorted
// and replayed independently.
func (e *Engine) Run(userID string, orders []types.Order) Result {
	logger := log.With().
		Str("user_id", userID).
		Str("component", "matching").
		Logger()

	groups := make(map[Group][]types.Order)
	for _, o := range orders {
		g := Group{Symbol: o.Symbol, AccountKey: o.AccountKey}
		groups[g] = append(groups[g], o)
	}

	var result Result
	for g, groupOrders := range groups {
		instances, diags := e.runGroup(userID, g, groupOrders)
		result.Instances = append(result.Instances, instances...)
		result.Diagnostics = append(result.Diagnostics, diags...)
	}

	logger.Info().
		Int("orders", len(orders)).
		Int("groups", len(groups)).
		Int("instances", len(result.Instances)).
		Int("skipped", len(result.Diagnostics)).
		Msg("matching pass completed")

	return result
}

// Groups returns the distinct (symbol, accountKey) groups present in the given
// orders, used to scope incremental rebuilds.
func Groups(orders []types.Order) []Group {
	seen := make(map[Group]struct{})
	var out []Group
	for _, o := range orders {
		g := Group{Symbol: o.Symbol, AccountKey: o.AccountKey}
		if _, ok := seen[g]; !ok {
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].AccountKey < out[j].AccountKey
	})
	return out
}

func (e *Engine) runGroup(userID string, g Group, orders []types.Order) ([]*position.Instance, []types.Diagnostic) {
	logger := log.With().
		Str("user_id", userID).
		Str("symbol", g.Symbol).
		Str("account_key", g.AccountKey).
		Str("component", "matching").
		Logger()

	sort.SliceStable(orders, func(i, j int) bool {
		return chronologicalLess(orders[i], orders[j])
	})

	tracker := position.NewTracker(userID, g.Symbol, g.AccountKey)
	var instances []*position.Instance
	var diags []types.Diagnostic

	for _, o := range orders {
		if reason := validate(o); reason != "" {
			logger.Warn().
				Str("order_id", o.OrderID).
				Str("reason", reason).
				Msg("skipping malformed order")
			metrics.OrdersSkipped.WithLabelValues(reason).Inc()
			diags = append(diags, types.Diagnostic{
				OrderID:    o.OrderID,
				UserID:     userID,
				Symbol:     g.Symbol,
				AccountKey: g.AccountKey,
				Reason:     reason,
			})
			continue
		}

		if closed := tracker.Apply(o); closed != nil {
			instances = append(instances, closed)
		}
	}

	// At most one open instance per group survives the stream.
	if open := tracker.Flush(); open != nil {
		instances = append(instances, open)
	}

	logger.Debug().
		Int("orders", len(orders)).
		Int("instances", len(instances)).
		Msg("group replay completed")

	return instances, diags
}

// chronologicalLess orders executions by time, breaking ties by ascending
// import sequence. The tie-break preserves upload order when broker timestamps
// lack the granularity to distinguish fills; it is a policy choice, kept in one
// place so it can change if timestamp granularity does.
func chronologicalLess(a, b types.Order) bool {
	if !a.ExecutedAt.Equal(b.ExecutedAt) {
		return a.ExecutedAt.Before(b.ExecutedAt)
	}
	return a.ImportSequence < b.ImportSequence
}

const (
	reasonNonPositiveQuantity = "non_positive_quantity"
	reasonNonPositivePrice    = "non_positive_price"
	reasonUnknownSide         = "unknown_side"
)

func validate(o types.Order) string {
	if o.Quantity <= 0 {
		return reasonNonPositiveQuantity
	}
	if o.Price <= 0 {
		return reasonNonPositivePrice
	}
	if o.Side != types.SideBuy && o.Side != types.SideSell {
		return reasonUnknownSide
	}
	return ""
}
