package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/service"
)

type PlotHandler struct {
	plotService      *service.PlotService
	occupancyService *service.OccupancyService
}

func NewPlotHandler(ps *service.PlotService, occ *service.OccupancyService) *PlotHandler {
	return &PlotHandler{plotService: ps, occupancyService: occ}
}

// POST /plots
func (h *PlotHandler) CreatePlot(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var dto domain.CreatePlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plot, err := h.plotService.CreatePlot(c.Request.Context(), a, dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plot)
}

// GET /plots/:id
func (h *PlotHandler) GetPlot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	plot, err := h.plotService.GetPlot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plot)
}

// GET /plots
func (h *PlotHandler) ListPlots(c *gin.Context) {
	plots, err := h.plotService.ListPlots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if plots == nil {
		plots = []domain.Plot{}
	}
	c.JSON(http.StatusOK, plots)
}

// PUT /plots/:id
func (h *PlotHandler) UpdatePlot(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.UpdatePlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plot, err := h.plotService.UpdatePlot(c.Request.Context(), a, id, dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plot)
}

// DELETE /plots/:id
func (h *PlotHandler) DeletePlot(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.plotService.DeletePlot(c.Request.Context(), a, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "plot deleted"})
}

// GET /plots/:id/occupancy
func (h *PlotHandler) GetOccupancy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	occ, err := h.occupancyService.PlotOccupancy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, occ)
}
