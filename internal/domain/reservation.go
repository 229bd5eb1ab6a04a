package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled
}

type Reservation struct {
	ID        int               `json:"id"`
	UserID    int               `json:"user_id"`
	PlotID    int               `json:"plot_id"`
	SlotID    null.Int          `json:"slot_id"` // null once the slot has been deleted
	Status    ReservationStatus `json:"status"`
	Price     float64           `json:"price"` // plot price captured at booking time
	StartTime time.Time         `json:"start_time"`
	EndTime   null.Time         `json:"end_time"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// CreateReservationDTO lets an admin book on behalf of another user.
type CreateReservationDTO struct {
	UserID *int `json:"user_id"`
}

type ReservationPlot struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	PinCode      string  `json:"pin_code"`
	PricePerUnit float64 `json:"price_per_unit"`
}

type ReservationUser struct {
	ID       int    `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// ReservationView is the API shape of a reservation, with its plot and user
// inlined for display. Either is nil if the record no longer exists.
type ReservationView struct {
	Reservation
	Plot *ReservationPlot `json:"plot"`
	User *ReservationUser `json:"user"`
}
