package recalc

import (
	"errors"
	"sort"
	"time"

	"github.com/PettyFoot/stonks-two-sub010/internal/aggregate"
	"github.com/PettyFoot/stonks-two-sub010/internal/matching"
	"github.com/PettyFoot/stonks-two-sub010/internal/metrics"
	"github.com/PettyFoot/stonks-two-sub010/internal/position"
	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrBatchNotFound is returned when an incremental rebuild references an
// import batch with no orders.
var ErrBatchNotFound = errors.New("import batch not found")

// Service orchestrates full and incremental trade rebuilds. Both variants
// read once, compute entirely in memory, and persist once inside a single
// transaction, under an exclusive scope lock.
type Service struct {
	db     *Database
	engine *matching.Engine
	agg    *aggregate.Aggregator
	guard  *scopeGuard
}

// NewService creates a recalculation service.
func NewService(gormDB *gorm.DB, agg *aggregate.Aggregator) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		engine: matching.NewEngine(),
		agg:    agg,
		guard:  newScopeGuard(),
	}
}

// LockUser exposes the whole-user rebuild scope so trade deletion can exclude
// concurrent rebuilds over the same trades.
func (s *Service) LockUser(userID string) (func(), error) {
	return s.guard.acquireUser(userID)
}

// BuildTrades discards every computed trade for the user and rebuilds the
// full set from the complete order history. Rerunning it on an unchanged
// order set reproduces the same trade content; user annotations are carried
// over by the deterministic trade key.
func (s *Service) BuildTrades(userID string) (*types.RebuildResponse, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("service", "recalc").
		Logger()

	release, err := s.guard.acquireUser(userID)
	if err != nil {
		logger.Warn().Msg("full rebuild rejected, scope already locked")
		metrics.Rebuilds.WithLabelValues("full", "rejected").Inc()
		return nil, err
	}
	defer release()

	start := time.Now()
	logger.Info().Msg("starting full rebuild")

	orders, err := s.db.GetOrdersByUser(userID)
	if err != nil {
		metrics.Rebuilds.WithLabelValues("full", "error").Inc()
		return nil, err
	}
	existing, err := s.db.GetTradesByUser(userID)
	if err != nil {
		metrics.Rebuilds.WithLabelValues("full", "error").Inc()
		return nil, err
	}

	trades, links, diags := s.compute(userID, orders, existing)

	if err := s.db.ReplaceTradesForUser(userID, trades, links); err != nil {
		logger.Error().Err(err).Msg("failed to persist full rebuild")
		metrics.Rebuilds.WithLabelValues("full", "error").Inc()
		return nil, err
	}

	s.observe("full", start, trades)
	logger.Info().
		Int("orders", len(orders)).
		Int("trades", len(trades)).
		Int("skipped", len(diags)).
		Dur("elapsed", time.Since(start)).
		Msg("full rebuild completed")

	return &types.RebuildResponse{
		UserID:      userID,
		Trades:      trades,
		Diagnostics: diags,
		Timestamp:   time.Now(),
	}, nil
}

// RecalculateForImportBatch rebuilds only the (symbol, accountKey) groups the
// batch touched. Each touched group's entire history is replayed, because a
// backfilled batch can insert orders before previously processed ones; trades
// of untouched groups are never written.
func (s *Service) RecalculateForImportBatch(userID, batchID string) (*types.RebuildResponse, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("import_batch_id", batchID).
		Str("service", "recalc").
		Logger()

	batchOrders, err := s.db.GetOrdersByBatch(userID, batchID)
	if err != nil {
		return nil, err
	}
	if len(batchOrders) == 0 {
		return nil, ErrBatchNotFound
	}

	groups := matching.Groups(batchOrders)
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.Symbol+"|"+g.AccountKey)
	}

	release, err := s.guard.acquireGroups(userID, keys)
	if err != nil {
		logger.Warn().Strs("groups", keys).Msg("incremental rebuild rejected, scope already locked")
		metrics.Rebuilds.WithLabelValues("incremental", "rejected").Inc()
		return nil, err
	}
	defer release()

	start := time.Now()
	logger.Info().Int("groups", len(groups)).Msg("starting incremental rebuild")

	existing, err := s.db.GetTradesByGroups(userID, groups)
	if err != nil {
		metrics.Rebuilds.WithLabelValues("incremental", "error").Inc()
		return nil, err
	}

	var allOrders []types.Order
	for _, g := range groups {
		groupOrders, err := s.db.GetOrdersByGroup(userID, g.Symbol, g.AccountKey)
		if err != nil {
			metrics.Rebuilds.WithLabelValues("incremental", "error").Inc()
			return nil, err
		}
		allOrders = append(allOrders, groupOrders...)
	}

	trades, links, diags := s.compute(userID, allOrders, existing)

	if err := s.db.ReplaceTradesForGroups(userID, groups, trades, links); err != nil {
		logger.Error().Err(err).Msg("failed to persist incremental rebuild")
		metrics.Rebuilds.WithLabelValues("incremental", "error").Inc()
		return nil, err
	}

	s.observe("incremental", start, trades)
	logger.Info().
		Int("orders", len(allOrders)).
		Int("trades", len(trades)).
		Int("skipped", len(diags)).
		Dur("elapsed", time.Since(start)).
		Msg("incremental rebuild completed")

	return &types.RebuildResponse{
		UserID:        userID,
		ImportBatchID: batchID,
		Trades:        trades,
		Diagnostics:   diags,
		Timestamp:     time.Now(),
	}, nil
}

// GetCalculatedTrades returns the user's computed trades without touching them.
func (s *Service) GetCalculatedTrades(userID string) ([]types.Trade, error) {
	return s.db.GetTradesByUser(userID)
}

// UpdateAnnotations sets the user-supplied notes and tags on a trade. These
// are the only hand-edited trade fields and survive recomputation.
func (s *Service) UpdateAnnotations(userID, tradeRef, notes, tags string) (*types.Trade, error) {
	return s.db.UpdateTradeAnnotations(userID, tradeRef, notes, tags)
}

// compute runs matching and aggregation fully in memory and resolves trade
// identity against the previous generation: a new trade matching an old one on
// (symbol, accountKey, first entry order id) keeps the old trade ref, notes
// and tags.
func (s *Service) compute(userID string, orders []types.Order, existing []types.Trade) ([]types.Trade, map[string]string, []types.Diagnostic) {
	result := s.engine.Run(userID, orders)

	// Deterministic emission order: per group, instances open strictly after
	// the previous one closed, so (symbol, accountKey, openedAt) reproduces
	// replay order independent of map iteration.
	sort.Slice(result.Instances, func(i, j int) bool {
		a, b := result.Instances[i], result.Instances[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.AccountKey != b.AccountKey {
			return a.AccountKey < b.AccountKey
		}
		return a.OpenedAt.Before(b.OpenedAt)
	})

	oldByKey := make(map[string]types.Trade, len(existing))
	for _, t := range existing {
		oldByKey[tradeKey(t.Symbol, t.AccountKey, t.EntryOrderID)] = t
	}

	trades := make([]types.Trade, 0, len(result.Instances))
	links := make(map[string]string)
	for _, inst := range result.Instances {
		trade := s.agg.Build(inst)

		if old, ok := oldByKey[tradeKey(trade.Symbol, trade.AccountKey, trade.EntryOrderID)]; ok {
			trade.TradeRef = old.TradeRef
			trade.Notes = old.Notes
			if old.Tags != "" {
				trade.Tags = old.Tags
			}
		} else {
			trade.TradeRef = "TRD_" + uuid.New().String()
		}

		// First consumption wins: an order split by a flip stays pointed at
		// the trade it closed; both trades record it in their constituency.
		for _, id := range instanceOrderIDs(inst) {
			if _, linked := links[id]; !linked {
				links[id] = trade.TradeRef
			}
		}

		trades = append(trades, trade)
	}

	return trades, links, result.Diagnostics
}

func (s *Service) observe(mode string, start time.Time, trades []types.Trade) {
	metrics.Rebuilds.WithLabelValues(mode, "success").Inc()
	metrics.RebuildDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	for _, t := range trades {
		metrics.TradesBuilt.WithLabelValues(t.Status).Inc()
	}
}

func tradeKey(symbol, accountKey, entryOrderID string) string {
	return symbol + "|" + accountKey + "|" + entryOrderID
}

func instanceOrderIDs(inst *position.Instance) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, lot := range inst.Exits {
		if _, ok := seen[lot.Order.OrderID]; !ok {
			seen[lot.Order.OrderID] = struct{}{}
			ids = append(ids, lot.Order.OrderID)
		}
	}
	for _, lot := range inst.Entries {
		if _, ok := seen[lot.Order.OrderID]; !ok {
			seen[lot.Order.OrderID] = struct{}{}
			ids = append(ids, lot.Order.OrderID)
		}
	}
	return ids
}
