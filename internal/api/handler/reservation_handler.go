package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/service"
)

type ReservationHandler struct {
	reservationService *service.ReservationService
}

func NewReservationHandler(rs *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: rs}
}

// POST /plots/:id/reservations
// The body is optional; admins may pass {"user_id": n} to book for someone else.
func (h *ReservationHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	plotID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.CreateReservationDTO
	if err := c.ShouldBindJSON(&dto); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := a.UserID
	if dto.UserID != nil {
		userID = *dto.UserID
	}

	res, err := h.reservationService.Create(c.Request.Context(), a, plotID, userID)
	h.respondOne(c, http.StatusCreated, res, err)
}

// GET /plots/:id/reservations
func (h *ReservationHandler) ListByPlot(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	plotID, ok := paramID(c, "id")
	if !ok {
		return
	}
	reservations, err := h.reservationService.ListByPlot(c.Request.Context(), a, plotID)
	h.respondList(c, reservations, err)
}

// GET /reservations
func (h *ReservationHandler) ListAll(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	reservations, err := h.reservationService.ListAll(c.Request.Context(), a)
	h.respondList(c, reservations, err)
}

// GET /reservations/user/:user_id
func (h *ReservationHandler) ListByUser(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	reservations, err := h.reservationService.ListByUser(c.Request.Context(), a, userID)
	h.respondList(c, reservations, err)
}

// GET /reservations/:id
func (h *ReservationHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.reservationService.GetByID(c.Request.Context(), a, id)
	h.respondOne(c, http.StatusOK, res, err)
}

// GET /slots/:slot_id/reservation
func (h *ReservationHandler) GetBySlot(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	slotID, ok := paramID(c, "slot_id")
	if !ok {
		return
	}
	res, err := h.reservationService.GetActiveBySlot(c.Request.Context(), a, slotID)
	h.respondOne(c, http.StatusOK, res, err)
}

// PATCH /reservations/:id/complete
func (h *ReservationHandler) Complete(c *gin.Context) {
	h.finish(c, h.reservationService.Complete)
}

// PATCH /reservations/:id/cancel
func (h *ReservationHandler) Cancel(c *gin.Context) {
	h.finish(c, h.reservationService.Cancel)
}

type transitionFunc func(ctx context.Context, actor domain.Actor, id int) (*domain.Reservation, error)

func (h *ReservationHandler) finish(c *gin.Context, transition transitionFunc) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := transition(c.Request.Context(), a, id)
	h.respondOne(c, http.StatusOK, res, err)
}

func (h *ReservationHandler) respondOne(c *gin.Context, status int, res *domain.Reservation, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	views, err := h.reservationService.Views(c.Request.Context(), *res)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, views[0])
}

func (h *ReservationHandler) respondList(c *gin.Context, reservations []domain.Reservation, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	views, err := h.reservationService.Views(c.Request.Context(), reservations...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}
