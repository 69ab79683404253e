package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"room-booking/internal/data/entity"
	"room-booking/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ReservationFilter narrows List. Nil fields are ignored.
type ReservationFilter struct {
	RoomID *int64
	UserID *int64
	Status *entity.ReservationStatus
	From   *time.Time // start_at >= From
	To     *time.Time // end_at <= To
	Limit  int
	Offset int
}

type ReservationRepository interface {
	Create(ctx context.Context, r *entity.Reservation) error
	FindByID(ctx context.Context, id int64) (*entity.Reservation, error)
	FindActiveByRoomInRange(ctx context.Context, roomID int64, from, to time.Time) ([]*entity.Reservation, error)
	List(ctx context.Context, filter ReservationFilter) ([]*entity.Reservation, int64, error)
	UpdateStatus(ctx context.Context, id int64, from, to entity.ReservationStatus, now time.Time) (bool, error)
	ExpireIfDue(ctx context.Context, id int64, now time.Time) (bool, error)
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entity.Reservation, error)
	LockRoom(ctx context.Context, roomID int64) error
}

type reservationRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewReservationRepository(db database.PgxIface, log *zap.Logger) ReservationRepository {
	return &reservationRepository{
		db:  db,
		log: log.With(zap.String("repository", "reservation")),
	}
}

const reservationColumns = `id, user_id, room_id, status, start_at, end_at, hold_expires_at, created_at, updated_at`

func scanReservation(row pgx.Row) (*entity.Reservation, error) {
	var r entity.Reservation
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.RoomID,
		&r.Status,
		&r.StartAt,
		&r.EndAt,
		&r.HoldExpiresAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectReservations(rows pgx.Rows) ([]*entity.Reservation, error) {
	defer rows.Close()

	var list []*entity.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation rows: %w", err)
	}
	return list, nil
}

// Create inserts r and fills in its ID. A row rejected by the overlap
// exclusion constraint yields ErrOverlap.
func (rr *reservationRepository) Create(ctx context.Context, r *entity.Reservation) error {
	query := `
		INSERT INTO reservations (user_id, room_id, status, start_at, end_at,
		                          hold_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := conn(ctx, rr.db).QueryRow(ctx, query,
		r.UserID,
		r.RoomID,
		r.Status,
		r.StartAt,
		r.EndAt,
		r.HoldExpiresAt,
		r.CreatedAt,
		r.UpdatedAt,
	).Scan(&r.ID)

	if err != nil {
		if isExclusionViolation(err) {
			return ErrOverlap
		}
		rr.log.Error("Failed to create reservation",
			zap.Error(err),
			zap.Int64("room_id", r.RoomID),
			zap.Int64("user_id", r.UserID),
		)
		return fmt.Errorf("create reservation in room %d: %w", r.RoomID, err)
	}

	return nil
}

func (rr *reservationRepository) FindByID(ctx context.Context, id int64) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	r, err := scanReservation(conn(ctx, rr.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		rr.log.Error("Failed to find reservation", zap.Error(err), zap.Int64("reservation_id", id))
		return nil, fmt.Errorf("find reservation %d: %w", id, err)
	}

	return r, nil
}

// FindActiveByRoomInRange returns non-canceled reservations of a room that
// intersect [from, to), earliest first.
func (rr *reservationRepository) FindActiveByRoomInRange(ctx context.Context, roomID int64, from, to time.Time) ([]*entity.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE room_id = $1
		  AND status <> 'canceled'
		  AND start_at < $3
		  AND end_at > $2
		ORDER BY start_at ASC
	`

	rows, err := conn(ctx, rr.db).Query(ctx, query, roomID, from, to)
	if err != nil {
		rr.log.Error("Failed to load room reservations",
			zap.Error(err),
			zap.Int64("room_id", roomID),
		)
		return nil, fmt.Errorf("find reservations of room %d: %w", roomID, err)
	}

	return collectReservations(rows)
}

func (rr *reservationRepository) List(ctx context.Context, filter ReservationFilter) ([]*entity.Reservation, int64, error) {
	var where strings.Builder
	where.WriteString(" WHERE 1=1")

	args := []interface{}{}
	argCount := 1

	if filter.RoomID != nil {
		where.WriteString(fmt.Sprintf(" AND room_id = $%d", argCount))
		args = append(args, *filter.RoomID)
		argCount++
	}
	if filter.UserID != nil {
		where.WriteString(fmt.Sprintf(" AND user_id = $%d", argCount))
		args = append(args, *filter.UserID)
		argCount++
	}
	if filter.Status != nil {
		where.WriteString(fmt.Sprintf(" AND status = $%d", argCount))
		args = append(args, *filter.Status)
		argCount++
	}
	if filter.From != nil {
		where.WriteString(fmt.Sprintf(" AND start_at >= $%d", argCount))
		args = append(args, *filter.From)
		argCount++
	}
	if filter.To != nil {
		where.WriteString(fmt.Sprintf(" AND end_at <= $%d", argCount))
		args = append(args, *filter.To)
		argCount++
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM reservations` + where.String()
	if err := conn(ctx, rr.db).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		rr.log.Error("Failed to count reservations", zap.Error(err))
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations` + where.String() +
		fmt.Sprintf(" ORDER BY start_at DESC, id DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := conn(ctx, rr.db).Query(ctx, query, args...)
	if err != nil {
		rr.log.Error("Failed to list reservations",
			zap.Error(err),
			zap.Int("limit", filter.Limit),
			zap.Int("offset", filter.Offset),
		)
		return nil, 0, fmt.Errorf("list reservations limit %d offset %d: %w", filter.Limit, filter.Offset, err)
	}

	list, err := collectReservations(rows)
	if err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

// UpdateStatus moves a reservation from one status to another only if it is
// still in the expected status. It reports whether the row was changed.
// Leaving pending always clears the hold deadline.
func (rr *reservationRepository) UpdateStatus(ctx context.Context, id int64, from, to entity.ReservationStatus, now time.Time) (bool, error) {
	query := `
		UPDATE reservations
		SET status = $3,
		    hold_expires_at = CASE WHEN $3::text = 'pending' THEN hold_expires_at ELSE NULL END,
		    updated_at = $4
		WHERE id = $1 AND status = $2
	`

	result, err := conn(ctx, rr.db).Exec(ctx, query, id, from, to, now)
	if err != nil {
		rr.log.Error("Failed to update reservation status",
			zap.Error(err),
			zap.Int64("reservation_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("update reservation %d %s -> %s: %w", id, from, to, err)
	}

	return result.RowsAffected() == 1, nil
}

// ExpireIfDue cancels a pending reservation whose hold deadline is at or
// before now. It reports whether the row was changed.
func (rr *reservationRepository) ExpireIfDue(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE reservations
		SET status = 'canceled', hold_expires_at = NULL, updated_at = $2
		WHERE id = $1
		  AND status = 'pending'
		  AND hold_expires_at IS NOT NULL
		  AND hold_expires_at <= $2
	`

	result, err := conn(ctx, rr.db).Exec(ctx, query, id, now)
	if err != nil {
		rr.log.Error("Failed to expire reservation", zap.Error(err), zap.Int64("reservation_id", id))
		return false, fmt.Errorf("expire reservation %d: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

func (rr *reservationRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entity.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'pending'
		  AND hold_expires_at IS NOT NULL
		  AND hold_expires_at <= $1
		ORDER BY hold_expires_at ASC
		LIMIT $2
	`

	rows, err := conn(ctx, rr.db).Query(ctx, query, now, limit)
	if err != nil {
		rr.log.Error("Failed to find expired holds", zap.Error(err))
		return nil, fmt.Errorf("find expired holds: %w", err)
	}

	return collectReservations(rows)
}

// LockRoom takes a transaction-scoped advisory lock keyed by room id. It must
// be called inside WithTx.
func (rr *reservationRepository) LockRoom(ctx context.Context, roomID int64) error {
	if txFromContext(ctx) == nil {
		return errors.New("lock room: no transaction in context")
	}
	if _, err := conn(ctx, rr.db).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, roomID); err != nil {
		rr.log.Error("Failed to lock room", zap.Error(err), zap.Int64("room_id", roomID))
		return fmt.Errorf("lock room %d: %w", roomID, err)
	}
	return nil
}
