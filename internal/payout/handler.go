package payout

import (
	"errors"
	"net/http"
	"strconv"

	"belta/internal/auth"
	"belta/internal/wallet"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreatePayout godoc
// @Summary      Withdraw wallet balance
// @Tags         payouts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreatePayoutInput  true  "Payout amount"
// @Success      201      {object}  Withdraw
// @Failure      403      {object}  gin.H
// @Failure      422      {object}  gin.H
// @Router       /payouts [post]
func (h *Handler) CreatePayout(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input CreatePayoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wd, err := h.service.CreatePayout(c.Request.Context(), userID, input.Amount)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrNotTeacher):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only teachers can withdraw"})
		case errors.Is(err, wallet.ErrNonPositiveAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		case errors.Is(err, wallet.ErrInsufficientBalance):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Insufficient wallet balance"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to submit payout"})
		}
		return
	}

	c.JSON(http.StatusCreated, wd)
}

// GetWithdraw godoc
// @Summary      Withdraw details with status history
// @Tags         payouts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Withdraw ID"
// @Success      200  {object}  Withdraw
// @Failure      404  {object}  gin.H
// @Router       /payouts/{id} [get]
func (h *Handler) GetWithdraw(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	withdrawID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid withdraw ID"})
		return
	}

	wd, err := h.service.GetWithdraw(c.Request.Context(), userID, withdrawID)
	if err != nil {
		switch {
		case errors.Is(err, ErrWithdrawNotFound), errors.Is(err, ErrNotOwnWithdraw):
			c.JSON(http.StatusNotFound, gin.H{"error": "Withdraw not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load withdraw"})
		}
		return
	}

	c.JSON(http.StatusOK, wd)
}

// SyncWithdraw godoc
// @Summary      Poll the provider for the current withdraw status
// @Tags         payouts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Withdraw ID"
// @Success      200  {object}  Withdraw
// @Failure      404  {object}  gin.H
// @Router       /payouts/{id}/sync [post]
func (h *Handler) SyncWithdraw(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	withdrawID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid withdraw ID"})
		return
	}

	wd, err := h.service.SyncFromGateway(c.Request.Context(), userID, withdrawID)
	if err != nil {
		switch {
		case errors.Is(err, ErrWithdrawNotFound), errors.Is(err, ErrNotOwnWithdraw):
			c.JSON(http.StatusNotFound, gin.H{"error": "Withdraw not found"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to poll payout status"})
		}
		return
	}

	c.JSON(http.StatusOK, wd)
}

// ListMyWithdraws godoc
// @Summary      List my withdraws
// @Tags         payouts
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query    int  false  "Page size"
// @Param        offset  query    int  false  "Offset"
// @Success      200     {array}  Withdraw
// @Router       /payouts [get]
func (h *Handler) ListMyWithdraws(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	withdraws, err := h.service.ListMyWithdraws(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load withdraws"})
		return
	}

	c.JSON(http.StatusOK, withdraws)
}
