package integrity

import (
	"encoding/json"
	"fmt"

	"github.com/PettyFoot/stonks-two-sub010/internal/metrics"
	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Conflict reports a deletion blocked because constituent orders are shared
// with trades outside the deletion set. No mutation has been performed.
type Conflict struct {
	SharedOrderCount int
	AffectedTrades   []string
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("deletion blocked: %d orders shared with %d other trades",
		c.SharedOrderCount, len(c.AffectedTrades))
}

// Locker hands out the exclusive whole-user scope, shared with the
// recalculation controller so deletions never interleave with rebuilds over
// the same trades.
type Locker interface {
	LockUser(userID string) (func(), error)
}

// Service validates and executes trade deletion.
type Service struct {
	db     *Database
	locker Locker
}

// NewService creates an integrity service sharing the rebuild lock scope.
func NewService(gormDB *gorm.DB, locker Locker) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		locker: locker,
	}
}

// ValidateDeletion checks whether the given trades can be deleted without
// severing orders that other trades still reference. An order split by a
// position flip belongs to two trades; deleting only one of them would leave
// the other with dangling constituency.
func (s *Service) ValidateDeletion(userID string, tradeRefs []string) (*types.DeletionValidationResponse, error) {
	_, result, err := s.validate(userID, tradeRefs)
	return result, err
}

// DeleteTrades removes the trades and resets linkage on their constituent
// orders, atomically, only after validation passes. It holds the user rebuild
// scope for the duration.
func (s *Service) DeleteTrades(userID string, tradeRefs []string) (*types.DeletionResponse, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("service", "integrity").
		Logger()

	release, err := s.locker.LockUser(userID)
	if err != nil {
		metrics.TradeDeletions.WithLabelValues("rejected").Inc()
		return nil, err
	}
	defer release()

	orderIDs, validation, err := s.validate(userID, tradeRefs)
	if err != nil {
		metrics.TradeDeletions.WithLabelValues("error").Inc()
		return nil, err
	}
	if !validation.CanDelete {
		logger.Warn().
			Int("shared_orders", validation.SharedOrderCount).
			Strs("affected_trades", validation.AffectedTrades).
			Msg("deletion blocked by shared orders")
		metrics.TradeDeletions.WithLabelValues("conflict").Inc()
		return nil, &Conflict{
			SharedOrderCount: validation.SharedOrderCount,
			AffectedTrades:   validation.AffectedTrades,
		}
	}

	tradesDeleted, ordersDeleted, err := s.db.DeleteTradesAndUnlink(userID, tradeRefs, orderIDs)
	if err != nil {
		logger.Error().Err(err).Msg("failed to delete trades")
		metrics.TradeDeletions.WithLabelValues("error").Inc()
		return nil, err
	}

	logger.Info().
		Int("trades_deleted", tradesDeleted).
		Int("orders_unlinked", ordersDeleted).
		Msg("trades deleted")
	metrics.TradeDeletions.WithLabelValues("success").Inc()

	return &types.DeletionResponse{
		TradesDeleted: tradesDeleted,
		OrdersDeleted: ordersDeleted,
	}, nil
}

// validate resolves the deletion set's constituent orders and scans the
// user's remaining trades for shared ones.
func (s *Service) validate(userID string, tradeRefs []string) ([]string, *types.DeletionValidationResponse, error) {
	trades, err := s.db.GetTradesByRefs(userID, tradeRefs)
	if err != nil {
		return nil, nil, err
	}

	deletionOrders := make(map[string]struct{})
	var orderIDs []string
	for _, t := range trades {
		for _, id := range decodeOrderIDs(t.OrderIDs) {
			if _, ok := deletionOrders[id]; !ok {
				deletionOrders[id] = struct{}{}
				orderIDs = append(orderIDs, id)
			}
		}
	}

	remaining, err := s.db.GetRemainingTrades(userID, tradeRefs)
	if err != nil {
		return nil, nil, err
	}

	shared := make(map[string]struct{})
	var affected []string
	for _, t := range remaining {
		overlaps := false
		for _, id := range decodeOrderIDs(t.OrderIDs) {
			if _, ok := deletionOrders[id]; ok {
				shared[id] = struct{}{}
				overlaps = true
			}
		}
		if overlaps {
			affected = append(affected, t.TradeRef)
		}
	}

	return orderIDs, &types.DeletionValidationResponse{
		CanDelete:        len(shared) == 0,
		SharedOrderCount: len(shared),
		AffectedTrades:   affected,
	}, nil
}

func decodeOrderIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Error().Err(err).Msg("malformed order id list on trade")
		return nil
	}
	return ids
}
