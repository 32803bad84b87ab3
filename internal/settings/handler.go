package settings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	repo *Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

// GetSettings godoc
// @Summary      Platform settings
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Settings
// @Router       /admin/settings [get]
func (h *Handler) GetSettings(c *gin.Context) {
	s, err := h.repo.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, s)
}

// UpdateSettings godoc
// @Summary      Update platform settings
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      UpdateRequest  true  "Settings payload"
// @Success      200      {object}  Settings
// @Failure      400      {object}  gin.H
// @Router       /admin/settings [put]
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.repo.Update(c.Request.Context(), req.Currency, req.TeacherProfitPercent)
	if err != nil {
		if errors.Is(err, ErrInvalidProfitPercent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings"})
		return
	}

	c.JSON(http.StatusOK, s)
}
