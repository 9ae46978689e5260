package integrity

import (
	"errors"

	"github.com/PettyFoot/stonks-two-sub010/internal/recalc"
	"github.com/PettyFoot/stonks-two-sub010/pkg/middleware"
	"github.com/PettyFoot/stonks-two-sub010/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for trade deletion endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for deletion endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type deletionRequest struct {
	TradeRefs []string `json:"trade_refs" binding:"required,min=1"`
}

// ValidateDeletionHandler handles POST requests that pre-check a deletion.
func (h *GinHandlers) ValidateDeletionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var request deletionRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.ValidateDeletion(userID, request.TradeRefs)
		response.Handle(c, result, err)
	}
}

// DeleteTradesHandler handles POST requests that execute a validated deletion.
func (h *GinHandlers) DeleteTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var request deletionRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.DeleteTrades(userID, request.TradeRefs)

		var conflict *Conflict
		switch {
		case errors.As(err, &conflict):
			response.Conflict(c, response.ErrCodeIntegrityConflict, conflict.Error(), gin.H{
				"shared_order_count": conflict.SharedOrderCount,
				"affected_trades":    conflict.AffectedTrades,
			})
		case errors.Is(err, recalc.ErrRebuildInProgress):
			response.Conflict(c, response.ErrCodeRebuildInProgress, err.Error(), nil)
		default:
			response.Handle(c, result, err)
		}
	}
}
