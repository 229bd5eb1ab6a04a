package domain

import "time"

type ReservationEventType string

const (
	EventReservationCreated   ReservationEventType = "reservation.created"
	EventReservationCompleted ReservationEventType = "reservation.completed"
	EventReservationCancelled ReservationEventType = "reservation.cancelled"
)

// ReservationEvent is pushed to dashboards and message brokers after a
// reservation transition has been committed.
type ReservationEvent struct {
	Type          ReservationEventType `json:"type"`
	ReservationID int                  `json:"reservation_id"`
	UserID        int                  `json:"user_id"`
	PlotID        int                  `json:"plot_id"`
	SlotID        int                  `json:"slot_id"`
	SlotStatus    SlotStatus           `json:"slot_status"`
	OccurredAt    time.Time            `json:"occurred_at"`
}
