package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waste3d/coursehub-api/internal/application/usecase"
)

type DashboardHandler struct {
	dashboard *usecase.DashboardUseCase
}

func NewDashboardHandler(dashboard *usecase.DashboardUseCase) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// PUT /api/v1/dashboard/profile
func (h *DashboardHandler) UpdateName(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student, err := h.dashboard.UpdateName(c, id, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

// GET /api/v1/dashboard/transactions
func (h *DashboardHandler) Transactions(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	overview, err := h.dashboard.Transactions(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// GET /api/v1/dashboard/courses — купленные курсы с прогрессом
func (h *DashboardHandler) BrowseCourses(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	courses, err := h.dashboard.BrowseCourses(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

// GET /api/v1/dashboard/analytics
func (h *DashboardHandler) Analytics(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	counts, err := h.dashboard.Analytics(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// GET /api/v1/dashboard/teacher/courses
func (h *DashboardHandler) TeacherCourses(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	courses, err := h.dashboard.TeacherCourses(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}
