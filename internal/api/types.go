package api

import (
	"time"

	"github.com/tanishqsrivastavaa/petique-app/internal/scheduling"
)

type CreateBookingRequest struct {
	PetID   string    `json:"pet_id"`
	VetID   string    `json:"vet_id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Reason  *string   `json:"reason,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type WorkingHourRequest struct {
	Day       string                `json:"day"`
	StartTime *scheduling.TimeOfDay `json:"start_time"`
	EndTime   *scheduling.TimeOfDay `json:"end_time"`
	IsActive  *bool                 `json:"is_active,omitempty"`
}

type TimeOffRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Reason  *string   `json:"reason,omitempty"`
}

type SlotsResponse struct {
	VetID       string                `json:"vet_id"`
	Date        string                `json:"date"`
	SlotMinutes int                   `json:"slot_minutes"`
	Slots       []scheduling.Interval `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
