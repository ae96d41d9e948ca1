package scheduling

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no_show"
	StatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether a booking in this status holds its slot.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Role string

const (
	RoleOwner Role = "owner"
	RoleVet   Role = "vet"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleVet
}

// Actor is the authenticated caller. It is derived per request from a verified
// credential and passed explicitly into every service call.
type Actor struct {
	UserID uuid.UUID
	Role   Role
	VetID  *uuid.UUID
}

type Specialty string

const (
	SpecialtyGeneralPractice Specialty = "general_practice"
	SpecialtySurgery         Specialty = "surgery"
	SpecialtyDentistry       Specialty = "dentistry"
	SpecialtyDermatology     Specialty = "dermatology"
	SpecialtyCardiology      Specialty = "cardiology"
	SpecialtyOrthopedics     Specialty = "orthopedics"
	SpecialtyOphthalmology   Specialty = "ophthalmology"
	SpecialtyExotics         Specialty = "exotics"
)

var Specialties = []Specialty{
	SpecialtyGeneralPractice,
	SpecialtySurgery,
	SpecialtyDentistry,
	SpecialtyDermatology,
	SpecialtyCardiology,
	SpecialtyOrthopedics,
	SpecialtyOphthalmology,
	SpecialtyExotics,
}

type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

var weekdays = [...]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// WeekdayOf returns the day of week of t's civil day in UTC.
func WeekdayOf(t time.Time) Weekday {
	return weekdays[t.UTC().Weekday()]
}

func (d Weekday) Valid() bool {
	for _, w := range weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// TimeOfDay is a wall-clock time independent of any date, stored as seconds
// since midnight.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60)
}

// EndOfDay is midnight at the end of the day, written "24:00".
const EndOfDay TimeOfDay = secondsPerDay

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS". The only hour-24 value
// accepted is "24:00" (or "24:00:00"), which closes a window at midnight.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}

	limits := []int{24, 59, 59}
	var values [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		values[i] = n
	}

	tod := TimeOfDay(values[0]*3600 + values[1]*60 + values[2])
	if tod > EndOfDay {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return tod, nil
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

// On places t on the UTC civil day of date.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(t.Duration())
}

func (t TimeOfDay) String() string {
	h := int(t) / 3600
	m := (int(t) % 3600) / 60
	s := int(t) % 60
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type Vet struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Email     *string   `json:"email,omitempty"`
	Specialty Specialty `json:"specialty"`
	IsActive  bool      `json:"is_active"`
}

type Owner struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}

type Pet struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
	Species string    `json:"species"`
	Breed   *string   `json:"breed,omitempty"`
}

type WorkingHour struct {
	ID        uuid.UUID `json:"id"`
	VetID     uuid.UUID `json:"vet_id"`
	Day       Weekday   `json:"day"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Window materialises the working hour on the civil day of date.
func (w WorkingHour) Window(date time.Time) Interval {
	return Interval{Start: w.StartTime.On(date), End: w.EndTime.On(date)}
}

type TimeOff struct {
	ID        uuid.UUID `json:"id"`
	VetID     uuid.UUID `json:"vet_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (t TimeOff) Interval() Interval {
	return Interval{Start: t.StartAt, End: t.EndAt}
}

type Booking struct {
	ID        uuid.UUID     `json:"id"`
	VetID     uuid.UUID     `json:"vet_id"`
	PetID     uuid.UUID     `json:"pet_id"`
	OwnerID   uuid.UUID     `json:"owner_id"`
	StartAt   time.Time     `json:"start_at"`
	EndAt     time.Time     `json:"end_at"`
	Status    BookingStatus `json:"status"`
	Reason    *string       `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (b Booking) Interval() Interval {
	return Interval{Start: b.StartAt, End: b.EndAt}
}

type BookingDetail struct {
	Booking
	Pet   *Pet   `json:"pet,omitempty"`
	Owner *Owner `json:"owner,omitempty"`
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
