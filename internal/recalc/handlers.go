package recalc

import (
	"errors"

	"github.com/PettyFoot/stonks-two-sub010/pkg/middleware"
	"github.com/PettyFoot/stonks-two-sub010/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for rebuild and trade-read endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for rebuild endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// BuildTradesHandler handles POST requests to fully rebuild a user's trades.
func (h *GinHandlers) BuildTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		result, err := h.service.BuildTrades(userID)
		if errors.Is(err, ErrRebuildInProgress) {
			response.Conflict(c, response.ErrCodeRebuildInProgress, err.Error(), nil)
			return
		}
		response.Handle(c, result, err)
	}
}

// RecalculateBatchHandler handles POST requests to rebuild the groups touched
// by one import batch. URL parameter: batch_id.
func (h *GinHandlers) RecalculateBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		batchID := c.Param("batch_id")
		if batchID == "" {
			response.BadRequest(c, "Batch ID is required")
			return
		}

		result, err := h.service.RecalculateForImportBatch(userID, batchID)
		switch {
		case errors.Is(err, ErrRebuildInProgress):
			response.Conflict(c, response.ErrCodeRebuildInProgress, err.Error(), nil)
		case errors.Is(err, ErrBatchNotFound):
			response.NotFound(c, err.Error())
		default:
			response.Handle(c, result, err)
		}
	}
}

// GetTradesHandler handles GET requests for the user's computed trades.
func (h *GinHandlers) GetTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		trades, err := h.service.GetCalculatedTrades(userID)
		response.Handle(c, trades, err)
	}
}

// UpdateAnnotationsHandler handles PUT requests to set notes and tags on a
// trade. URL parameter: trade_ref.
func (h *GinHandlers) UpdateAnnotationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var request struct {
			Notes string `json:"notes"`
			Tags  string `json:"tags"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		trade, err := h.service.UpdateAnnotations(userID, c.Param("trade_ref"), request.Notes, request.Tags)
		response.Handle(c, trade, err)
	}
}
