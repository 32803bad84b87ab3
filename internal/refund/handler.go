package refund

import (
	"errors"
	"net/http"
	"strconv"

	"belta/internal/auth"
	"belta/internal/purchase"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RequestRefund godoc
// @Summary      Request a refund
// @Tags         refunds
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      RequestRefundInput  true  "Refund request"
// @Success      201      {object}  Refund
// @Failure      409      {object}  gin.H
// @Failure      422      {object}  gin.H
// @Router       /refunds [post]
func (h *Handler) RequestRefund(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input RequestRefundInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := h.service.Request(c.Request.Context(), userID, input.TransactionID, input.Reason)
	if err != nil {
		switch {
		case errors.Is(err, purchase.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		case errors.Is(err, ErrNotRefundable):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Transaction is not refundable"})
		case errors.Is(err, ErrRefundExists):
			c.JSON(http.StatusConflict, gin.H{"error": "A refund for this transaction already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to request refund"})
		}
		return
	}

	c.JSON(http.StatusCreated, ref)
}

// ReviewRefund godoc
// @Summary      Approve or reject a refund
// @Tags         refunds
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                true  "Refund ID"
// @Param        request  body      ReviewRefundInput  true  "Review decision"
// @Success      200      {object}  Refund
// @Failure      409      {object}  gin.H
// @Failure      422      {object}  gin.H
// @Router       /admin/refunds/{id}/review [post]
func (h *Handler) ReviewRefund(c *gin.Context) {
	reviewerID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	refundID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refund ID"})
		return
	}

	var input ReviewRefundInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ref, err := h.service.Review(c.Request.Context(), reviewerID, refundID, input.Approve, input.Response)
	if err != nil {
		switch {
		case errors.Is(err, ErrRefundNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Refund not found"})
		case errors.Is(err, ErrAlreadyReviewed):
			c.JSON(http.StatusConflict, gin.H{"error": "Refund has already been reviewed"})
		case errors.Is(err, ErrResponseRequired):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "A response is required when rejecting"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to review refund"})
		}
		return
	}

	c.JSON(http.StatusOK, ref)
}

// ListMyRefunds godoc
// @Summary      List my refund requests
// @Tags         refunds
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Refund
// @Router       /refunds [get]
func (h *Handler) ListMyRefunds(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	refunds, err := h.service.ListMyRefunds(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load refunds"})
		return
	}

	c.JSON(http.StatusOK, refunds)
}

// ListWaiting godoc
// @Summary      List refunds awaiting review
// @Tags         refunds
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query    int  false  "Page size"
// @Param        offset  query    int  false  "Offset"
// @Success      200     {array}  Refund
// @Router       /admin/refunds [get]
func (h *Handler) ListWaiting(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	refunds, err := h.service.ListWaiting(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load refunds"})
		return
	}

	c.JSON(http.StatusOK, refunds)
}
