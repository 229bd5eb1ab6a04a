package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vehicle_parking/internal/service"
)

type UserHandler struct {
	authService      *service.AuthService
	occupancyService *service.OccupancyService
}

func NewUserHandler(as *service.AuthService, occ *service.OccupancyService) *UserHandler {
	return &UserHandler{authService: as, occupancyService: occ}
}

// GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	user, err := h.authService.CurrentUser(c.Request.Context(), a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GET /api/v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	users, err := h.authService.ListUsers(c.Request.Context(), a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GET /api/v1/admin/stats
func (h *UserHandler) Stats(c *gin.Context) {
	stats, err := h.occupancyService.AppStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
