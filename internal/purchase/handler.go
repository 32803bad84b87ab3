package purchase

import (
	"errors"
	"net/http"
	"strconv"

	"belta/internal/auth"
	"belta/internal/course"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// InitiatePurchase godoc
// @Summary      Purchase a course
// @Description  Starts a purchase. Free courses settle immediately; paid
// @Description  courses return a checkout redirect URL.
// @Tags         purchases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Course ID"
// @Success      201  {object}  PurchaseResult
// @Failure      404  {object}  gin.H
// @Failure      409  {object}  gin.H
// @Router       /courses/{id}/purchase [post]
func (h *Handler) InitiatePurchase(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	courseID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course ID"})
		return
	}

	result, err := h.service.InitiatePurchase(c.Request.Context(), userID, courseID)
	if err != nil {
		switch {
		case errors.Is(err, course.ErrCourseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		case errors.Is(err, ErrCourseNotAvailable):
			c.JSON(http.StatusConflict, gin.H{"error": "Course is not available for purchase"})
		case errors.Is(err, ErrAlreadyOwned):
			c.JSON(http.StatusConflict, gin.H{"error": "You already own this course"})
		case errors.Is(err, ErrPendingExists):
			c.JSON(http.StatusConflict, gin.H{"error": "A pending purchase for this course already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start purchase"})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListMyPurchases godoc
// @Summary      List my purchases
// @Tags         purchases
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query    int  false  "Page size"
// @Param        offset  query    int  false  "Offset"
// @Success      200     {array}  Transaction
// @Router       /purchases [get]
func (h *Handler) ListMyPurchases(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	transactions, err := h.service.ListMyPurchases(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load purchases"})
		return
	}

	c.JSON(http.StatusOK, transactions)
}

// ListOwned godoc
// @Summary      List my owned courses
// @Tags         purchases
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  OwnedCourse
// @Router       /owned-courses [get]
func (h *Handler) ListOwned(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	owned, err := h.service.ListOwned(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load owned courses"})
		return
	}

	c.JSON(http.StatusOK, owned)
}
