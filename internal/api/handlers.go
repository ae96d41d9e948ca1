package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tanishqsrivastavaa/petique-app/internal/auth"
	"github.com/tanishqsrivastavaa/petique-app/internal/scheduling"
)

const dateLayout = "2006-01-02"

// Bookings

func createBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req CreateBookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		petID, err := uuid.Parse(req.PetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "pet_id must be a valid UUID")
			return
		}
		vetID, err := uuid.Parse(req.VetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "vet_id must be a valid UUID")
			return
		}

		booking, err := svc.CreateBooking(r.Context(), actor, scheduling.CreateBookingInput{
			PetID:   petID,
			VetID:   vetID,
			StartAt: req.StartAt,
			EndAt:   req.EndAt,
			Reason:  req.Reason,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, booking)
	}
}

func listOwnerBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		bookings, err := svc.ListOwnerBookings(r.Context(), actor)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bookings)
	}
}

func listVetBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		bookings, err := svc.ListVetBookings(r.Context(), actor)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bookings)
	}
}

func getBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		detail, err := svc.GetBooking(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func updateBookingStatusHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Status == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "status is required")
			return
		}

		booking, err := svc.UpdateStatus(r.Context(), actor, id, scheduling.BookingStatus(req.Status))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)
	}
}

// Schedule

func listWorkingHoursHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vetID, ok := uuidParam(w, r, "vetID")
		if !ok {
			return
		}

		hours, err := svc.ListWorkingHours(r.Context(), vetID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, hours)
	}
}

func addWorkingHourHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req WorkingHourRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var missing []string
		if req.StartTime == nil {
			missing = append(missing, "start_time is required")
		}
		if req.EndTime == nil {
			missing = append(missing, "end_time is required")
		}
		if len(missing) > 0 {
			writeError(w, http.StatusBadRequest, "validation_error", strings.Join(missing, "; "))
			return
		}

		wh, err := svc.AddWorkingHour(r.Context(), actor, scheduling.WorkingHourInput{
			Day:       scheduling.Weekday(strings.ToLower(req.Day)),
			StartTime: *req.StartTime,
			EndTime:   *req.EndTime,
			IsActive:  req.IsActive,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, wh)
	}
}

func removeWorkingHourHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.RemoveWorkingHour(r.Context(), actor, id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listTimeOffHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vetID, ok := uuidParam(w, r, "vetID")
		if !ok {
			return
		}

		entries, err := svc.ListTimeOff(r.Context(), vetID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func addTimeOffHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req TimeOffRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		entry, err := svc.AddTimeOff(r.Context(), actor, scheduling.TimeOffInput{
			StartAt: req.StartAt,
			EndAt:   req.EndAt,
			Reason:  req.Reason,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}

func removeTimeOffHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.RemoveTimeOff(r.Context(), actor, id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Availability

func freeSlotsHandler(svc ScheduleService, defaultSlot time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vetID, ok := uuidParam(w, r, "vetID")
		if !ok {
			return
		}

		rawDate := r.URL.Query().Get("date")
		date, err := time.ParseInLocation(dateLayout, rawDate, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
			return
		}

		slot := defaultSlot
		if raw := r.URL.Query().Get("slot_minutes"); raw != "" {
			minutes, err := strconv.Atoi(raw)
			if err != nil || minutes < 0 {
				writeError(w, http.StatusBadRequest, "validation_error", "slot_minutes must be a non-negative integer")
				return
			}
			slot = time.Duration(minutes) * time.Minute
		}

		slots, err := svc.FreeSlots(r.Context(), vetID, date, slot)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			VetID:       vetID.String(),
			Date:        date.Format(dateLayout),
			SlotMinutes: int(slot / time.Minute),
			Slots:       slots,
		})
	}
}

func checkAvailabilityHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vetID, ok := uuidParam(w, r, "vetID")
		if !ok {
			return
		}

		start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start_at"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "start_at must be an RFC3339 timestamp")
			return
		}
		end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end_at"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "end_at must be an RFC3339 timestamp")
			return
		}

		availability, err := svc.CheckSlot(r.Context(), vetID, start, end)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, availability)
	}
}

// Helpers

func requireActor(w http.ResponseWriter, r *http.Request) (scheduling.Actor, bool) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return scheduling.Actor{}, false
	}
	return actor, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "could not parse JSON body: "+err.Error())
		return false
	}
	return true
}

// handleServiceError maps the scheduling error taxonomy onto HTTP statuses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *scheduling.ValidationError
		transitionErr *scheduling.StateTransitionError
	)

	if reason, ok := scheduling.ConflictReasonOf(err); ok {
		writeError(w, http.StatusConflict, string(reason), err.Error())
		return
	}

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_error", strings.Join(validationErr.Fields, "; "))
	case scheduling.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case scheduling.IsPermission(err):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusUnprocessableEntity, "invalid_status_transition", err.Error())
	case errors.Is(err, scheduling.ErrVetBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "vet_busy", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
