package course

import (
	"errors"
	"net/http"
	"strconv"

	"belta/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	service Service
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{
		service: NewService(NewRepository(db)),
	}
}

// CreateCourse godoc
// @Summary      Create course
// @Tags         courses
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateCourseRequest  true  "Course payload"
// @Success      201      {object}  Course
// @Failure      400      {object}  gin.H
// @Router       /courses [post]
func (h *Handler) CreateCourse(c *gin.Context) {
	teacherID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.Create(c.Request.Context(), teacherID, req)
	if err != nil {
		if errors.Is(err, ErrNegativePrice) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Price cannot be negative"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create course"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GetCourse godoc
// @Summary      Get course
// @Tags         courses
// @Produce      json
// @Param        courseID  path      int  true  "Course ID"
// @Success      200       {object}  Course
// @Failure      404       {object}  gin.H
// @Router       /courses/{courseID} [get]
func (h *Handler) GetCourse(c *gin.Context) {
	courseID, err := strconv.Atoi(c.Param("courseID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course ID"})
		return
	}

	found, err := h.service.Get(c.Request.Context(), courseID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return
	}

	c.JSON(http.StatusOK, found)
}

// ListCourses godoc
// @Summary      List published courses
// @Tags         courses
// @Produce      json
// @Param        limit   query     int  false  "Page size"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   Course
// @Router       /courses [get]
func (h *Handler) ListCourses(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	courses, err := h.service.ListPublished(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load courses"})
		return
	}

	c.JSON(http.StatusOK, courses)
}

// ListMyCourses godoc
// @Summary      List own courses
// @Tags         courses
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Course
// @Router       /teacher/courses [get]
func (h *Handler) ListMyCourses(c *gin.Context) {
	teacherID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	courses, err := h.service.ListByTeacher(c.Request.Context(), teacherID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load courses"})
		return
	}

	c.JSON(http.StatusOK, courses)
}

// PublishCourse godoc
// @Summary      Publish course
// @Tags         courses
// @Security     BearerAuth
// @Produce      json
// @Param        courseID  path      int  true  "Course ID"
// @Success      200       {object}  gin.H
// @Failure      403       {object}  gin.H
// @Failure      404       {object}  gin.H
// @Router       /courses/{courseID}/publish [post]
func (h *Handler) PublishCourse(c *gin.Context) {
	h.setStatus(c, StatusPublished)
}

// ArchiveCourse godoc
// @Summary      Archive course
// @Tags         courses
// @Security     BearerAuth
// @Produce      json
// @Param        courseID  path      int  true  "Course ID"
// @Success      200       {object}  gin.H
// @Failure      403       {object}  gin.H
// @Failure      404       {object}  gin.H
// @Router       /courses/{courseID}/archive [post]
func (h *Handler) ArchiveCourse(c *gin.Context) {
	h.setStatus(c, StatusArchived)
}

func (h *Handler) setStatus(c *gin.Context, status string) {
	teacherID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	courseID, err := strconv.Atoi(c.Param("courseID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course ID"})
		return
	}

	switch status {
	case StatusPublished:
		err = h.service.Publish(c.Request.Context(), teacherID, courseID)
	case StatusArchived:
		err = h.service.Archive(c.Request.Context(), teacherID, courseID)
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrCourseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		case errors.Is(err, ErrNotCourseOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "You can only manage your own courses"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update course"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "course " + status})
}
