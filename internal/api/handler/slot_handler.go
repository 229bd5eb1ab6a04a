package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/service"
)

type SlotHandler struct {
	plotService *service.PlotService
}

func NewSlotHandler(ps *service.PlotService) *SlotHandler {
	return &SlotHandler{plotService: ps}
}

// GET /plots/:id/slots
func (h *SlotHandler) ListSlots(c *gin.Context) {
	plotID, ok := paramID(c, "id")
	if !ok {
		return
	}
	slots, err := h.plotService.ListSlots(c.Request.Context(), plotID)
	if err != nil {
		respondError(c, err)
		return
	}
	if slots == nil {
		slots = []domain.Slot{}
	}
	c.JSON(http.StatusOK, slots)
}

// POST /plots/:id/slots
func (h *SlotHandler) AddSlots(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	plotID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.AddSlotsDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slots, err := h.plotService.AddSlots(c.Request.Context(), a, plotID, dto.Count)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slots)
}

// GET /slots/:slot_id
func (h *SlotHandler) GetSlot(c *gin.Context) {
	slotID, ok := paramID(c, "slot_id")
	if !ok {
		return
	}
	slot, err := h.plotService.GetSlot(c.Request.Context(), slotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// DELETE /slots/:slot_id
func (h *SlotHandler) DeleteSlot(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	slotID, ok := paramID(c, "slot_id")
	if !ok {
		return
	}
	if err := h.plotService.DeleteSlot(c.Request.Context(), a, slotID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "slot deleted"})
}
