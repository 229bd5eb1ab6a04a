package domain

import "time"

// Plot is a parking location made of NumUnits slots.
type Plot struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	PinCode      string    `json:"pin_code"`
	PricePerUnit float64   `json:"price_per_unit"`
	NumUnits     int       `json:"num_units"`
	CreatedBy    int       `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreatePlotDTO struct {
	Name         string  `json:"name" binding:"required,max=100"`
	Address      string  `json:"address" binding:"required,max=200"`
	PinCode      string  `json:"pin_code" binding:"required,numeric,len=6"`
	PricePerUnit float64 `json:"price_per_unit" binding:"gte=0"`
	NumUnits     int     `json:"num_units" binding:"required,min=1,max=1000"`
}

// UpdatePlotDTO changes descriptive fields only; capacity changes go through slot endpoints.
type UpdatePlotDTO struct {
	Name         string   `json:"name" binding:"omitempty,max=100"`
	Address      string   `json:"address" binding:"omitempty,max=200"`
	PinCode      string   `json:"pin_code" binding:"omitempty,numeric,len=6"`
	PricePerUnit *float64 `json:"price_per_unit" binding:"omitempty,gte=0"`
}

type AddSlotsDTO struct {
	Count int `json:"count" binding:"required,min=1,max=1000"`
}
