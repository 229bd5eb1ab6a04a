package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type SlotStatus string

const (
	SlotVacant   SlotStatus = "vacant"
	SlotOccupied SlotStatus = "occupied"
)

type Slot struct {
	ID         int        `json:"id"`
	PlotID     int        `json:"plot_id"`
	SlotNumber int        `json:"slot_number"`
	Status     SlotStatus `json:"status"`
	OccupiedBy null.Int   `json:"occupied_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
