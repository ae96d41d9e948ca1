package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
)

type PgStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PgStore)(nil)

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

const (
	workingHourColumns = `id, vet_id, day, start_time, end_time, is_active, created_at`
	timeOffColumns     = `id, vet_id, start_at, end_at, reason, created_at`
	bookingColumns     = `id, vet_id, pet_id, owner_id, start_at, end_at, status, reason, created_at, updated_at`
)

func scanVet(row pgx.Row) (*Vet, error) {
	var v Vet
	err := row.Scan(&v.ID, &v.FullName, &v.Email, &v.Specialty, &v.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVetNotFound
		}
		return nil, err
	}
	return &v, nil
}

func scanPet(row pgx.Row) (*Pet, error) {
	var p Pet
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Species, &p.Breed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanOwner(row pgx.Row) (*Owner, error) {
	var o Owner
	err := row.Scan(&o.ID, &o.FullName, &o.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}
	return &o, nil
}

func scanWorkingHour(row pgx.Row) (*WorkingHour, error) {
	var wh WorkingHour
	var start, end pgtype.Time

	err := row.Scan(&wh.ID, &wh.VetID, &wh.Day, &start, &end, &wh.IsActive, &wh.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkingHourNotFound
		}
		return nil, err
	}

	wh.StartTime = timeOfDayFromPg(start)
	wh.EndTime = timeOfDayFromPg(end)
	return &wh, nil
}

func scanTimeOff(row pgx.Row) (*TimeOff, error) {
	var t TimeOff
	err := row.Scan(&t.ID, &t.VetID, &t.StartAt, &t.EndAt, &t.Reason, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTimeOffNotFound
		}
		return nil, err
	}
	t.StartAt = t.StartAt.UTC()
	t.EndAt = t.EndAt.UTC()
	return &t, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.VetID,
		&b.PetID,
		&b.OwnerID,
		&b.StartAt,
		&b.EndAt,
		&b.Status,
		&b.Reason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	b.StartAt = b.StartAt.UTC()
	b.EndAt = b.EndAt.UTC()
	return &b, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func timeOfDayFromPg(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / int64(time.Second/time.Microsecond))
}

func timeOfDayToPg(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Duration() / time.Microsecond), Valid: true}
}

// lockVet serialises schedule writes for one vet until tx ends.
func lockVet(ctx context.Context, tx pgx.Tx, vetID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, vetID.String()); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Interface methods

func (r *PgStore) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PgStore) GetVetByID(ctx context.Context, id uuid.UUID) (*Vet, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, email, specialty, is_active
		FROM vets
		WHERE id = $1
	`, id)
	return scanVet(row)
}

func (r *PgStore) GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, species, breed
		FROM pets
		WHERE id = $1
	`, id)
	return scanPet(row)
}

func (r *PgStore) GetOwnerByID(ctx context.Context, id uuid.UUID) (*Owner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, email
		FROM owners
		WHERE id = $1
	`, id)
	return scanOwner(row)
}

func (r *PgStore) ListWorkingHours(ctx context.Context, vetID uuid.UUID) ([]WorkingHour, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workingHourColumns+`
		FROM vet_working_hours
		WHERE vet_id = $1
		ORDER BY array_position(ARRAY['mon','tue','wed','thu','fri','sat','sun'], day), start_time
	`, vetID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanWorkingHour)
}

func (r *PgStore) ListActiveWorkingHoursForDay(ctx context.Context, vetID uuid.UUID, day Weekday) ([]WorkingHour, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workingHourColumns+`
		FROM vet_working_hours
		WHERE vet_id = $1 AND day = $2 AND is_active
		ORDER BY start_time
	`, vetID, day)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanWorkingHour)
}

func (r *PgStore) GetWorkingHour(ctx context.Context, id uuid.UUID) (*WorkingHour, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+workingHourColumns+`
		FROM vet_working_hours
		WHERE id = $1
	`, id)
	return scanWorkingHour(row)
}

func (r *PgStore) CreateWorkingHour(ctx context.Context, wh WorkingHour) (*WorkingHour, error) {
	if wh.ID == uuid.Nil {
		wh.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO vet_working_hours (id, vet_id, day, start_time, end_time, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+workingHourColumns,
		wh.ID, wh.VetID, wh.Day, timeOfDayToPg(wh.StartTime), timeOfDayToPg(wh.EndTime), wh.IsActive)

	created, err := scanWorkingHour(row)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, ErrVetNotFound
		}
		return nil, err
	}
	return created, nil
}

func (r *PgStore) DeleteWorkingHour(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vet_working_hours WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete working hour: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkingHourNotFound
	}
	return nil
}

func (r *PgStore) ListTimeOff(ctx context.Context, vetID uuid.UUID) ([]TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+timeOffColumns+`
		FROM vet_time_off
		WHERE vet_id = $1
		ORDER BY start_at
	`, vetID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTimeOff)
}

func (r *PgStore) ListTimeOffBetween(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+timeOffColumns+`
		FROM vet_time_off
		WHERE vet_id = $1
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at
	`, vetID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTimeOff)
}

func (r *PgStore) GetTimeOff(ctx context.Context, id uuid.UUID) (*TimeOff, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+timeOffColumns+`
		FROM vet_time_off
		WHERE id = $1
	`, id)
	return scanTimeOff(row)
}

// CreateTimeOff takes the same per-vet advisory lock as CreateBooking, so time
// off and bookings for one vet never commit past each other even when the
// application lock is per process.
func (r *PgStore) CreateTimeOff(ctx context.Context, t TimeOff) (*TimeOff, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := lockVet(ctx, tx, t.VetID); err != nil {
		return nil, err
	}

	var booked bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM bookings
			WHERE vet_id = $1
			  AND status IN ('pending', 'confirmed')
			  AND start_at < $3
			  AND end_at > $2
		)
	`, t.VetID, t.StartAt, t.EndAt).Scan(&booked)
	if err != nil {
		return nil, fmt.Errorf("recheck bookings: %w", err)
	}
	if booked {
		return nil, ErrOverlap
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO vet_time_off (id, vet_id, start_at, end_at, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING `+timeOffColumns,
		t.ID, t.VetID, t.StartAt, t.EndAt, t.Reason)

	created, err := scanTimeOff(row)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, ErrVetNotFound
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit time off: %w", err)
	}
	return created, nil
}

func (r *PgStore) DeleteTimeOff(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vet_time_off WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete time off: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTimeOffNotFound
	}
	return nil
}

func (r *PgStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgStore) ListBookingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE owner_id = $1
		ORDER BY start_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBooking)
}

func (r *PgStore) ListBookingsByVet(ctx context.Context, vetID uuid.UUID) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE vet_id = $1
		ORDER BY start_at
	`, vetID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBooking)
}

func (r *PgStore) ListActiveBookingsBetween(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE vet_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at
	`, vetID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBooking)
}

// CreateBooking takes a transaction-scoped advisory lock on the vet, re-checks
// for an overlapping active booking or time off and inserts. The bookings_no_overlap
// exclusion constraint rejects anything that slips past.
func (r *PgStore) CreateBooking(ctx context.Context, b Booking) (*Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := lockVet(ctx, tx, b.VetID); err != nil {
		return nil, err
	}

	var overlapping bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM bookings
			WHERE vet_id = $1
			  AND status IN ('pending', 'confirmed')
			  AND start_at < $3
			  AND end_at > $2
		)
	`, b.VetID, b.StartAt, b.EndAt).Scan(&overlapping)
	if err != nil {
		return nil, fmt.Errorf("recheck overlap: %w", err)
	}
	if overlapping && b.Status.Active() {
		return nil, ErrOverlap
	}

	var away bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM vet_time_off
			WHERE vet_id = $1
			  AND start_at < $3
			  AND end_at > $2
		)
	`, b.VetID, b.StartAt, b.EndAt).Scan(&away)
	if err != nil {
		return nil, fmt.Errorf("recheck time off: %w", err)
	}
	if away && b.Status.Active() {
		return nil, ErrTimeOffOverlap
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO bookings (id, vet_id, pet_id, owner_id, start_at, end_at, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+bookingColumns,
		b.ID, b.VetID, b.PetID, b.OwnerID, b.StartAt, b.EndAt, b.Status, b.Reason)

	created, err := scanBooking(row)
	if err != nil {
		switch pgErrorCode(err) {
		case pgExclusionViolation:
			return nil, ErrOverlap
		case pgForeignKeyViolation:
			return nil, fmt.Errorf("booking references a missing profile: %w", err)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		if pgErrorCode(err) == pgExclusionViolation {
			return nil, ErrOverlap
		}
		return nil, fmt.Errorf("commit booking: %w", err)
	}

	return created, nil
}

func (r *PgStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+bookingColumns,
		id, to, from)

	updated, err := scanBooking(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrBookingNotFound) {
		return nil, err
	}

	// no row matched: either the booking is gone or its status moved on
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrBookingNotFound
	}
	return nil, ErrStatusChanged
}

func (r *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
