package orders

import (
	"errors"
	"time"

	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/PettyFoot/stonks-two-sub010/pkg/middleware"
	"github.com/PettyFoot/stonks-two-sub010/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// OrderInput is one normalized execution as produced by the external broker
// file parsers. Parsing and format detection happen upstream; this boundary
// only stamps identity, batch and sequence onto already-clean records.
type OrderInput struct {
	AccountKey string    `json:"account_key" binding:"required"`
	Symbol     string    `json:"symbol" binding:"required"`
	Side       string    `json:"side" binding:"required"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	ExecutedAt time.Time `json:"executed_at" binding:"required"`
	Commission float64   `json:"commission"`
	Fees       float64   `json:"fees"`
}

// Service handles order ingestion and reads.
type Service struct {
	db *Database
}

// NewService creates a new order service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// ImportBatch ingests one upload of normalized orders. Every record receives
// the same fresh batch id and consecutive import sequence numbers continuing
// from the user's previous uploads, so equal-timestamp orders keep a stable
// replay order.
func (s *Service) ImportBatch(userID string, inputs []OrderInput) (*types.ImportResponse, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("service", "orders").
		Logger()

	if len(inputs) == 0 {
		return nil, errors.New("empty import batch")
	}

	nextSeq, err := s.db.MaxImportSequence(userID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to determine next import sequence")
		return nil, err
	}

	batchID := "BATCH_" + uuid.New().String()
	batch := make([]types.Order, 0, len(inputs))
	for _, in := range inputs {
		nextSeq++
		batch = append(batch, types.Order{
			OrderID:        "ORD_" + uuid.New().String(),
			UserID:         userID,
			AccountKey:     in.AccountKey,
			Symbol:         in.Symbol,
			Side:           in.Side,
			Quantity:       in.Quantity,
			Price:          in.Price,
			ExecutedAt:     in.ExecutedAt,
			ImportSequence: nextSeq,
			Commission:     in.Commission,
			Fees:           in.Fees,
			ImportBatchID:  batchID,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		})
	}

	if err := s.db.CreateBatch(batch); err != nil {
		logger.Error().Err(err).Str("import_batch_id", batchID).Msg("failed to persist import batch")
		return nil, err
	}

	logger.Info().
		Str("import_batch_id", batchID).
		Int("orders", len(batch)).
		Msg("import batch ingested")

	return &types.ImportResponse{
		ImportBatchID: batchID,
		OrdersCreated: len(batch),
		Timestamp:     time.Now(),
	}, nil
}

// GetOrders returns all of a user's orders.
func (s *Service) GetOrders(userID string) ([]types.Order, error) {
	return s.db.GetOrdersByUser(userID)
}

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ImportOrdersHandler handles POST requests carrying a batch of normalized
// orders. Requires a valid JWT token.
func (h *GinHandlers) ImportOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var inputs []OrderInput
		if err := c.ShouldBindJSON(&inputs); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.ImportBatch(userID, inputs)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, result)
	}
}

// ListOrdersHandler handles GET requests for a user's order history.
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		orders, err := h.service.GetOrders(userID)
		response.Handle(c, orders, err)
	}
}
