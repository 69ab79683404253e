package repository

import (
	"room-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Tx          Transactor
	User        UserRepository
	Session     SessionRepository
	Room        RoomRepository
	Reservation ReservationRepository
	Task        TaskRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Tx:          NewTransactor(db),
		User:        NewUserRepository(db, log),
		Session:     NewSessionRepository(db, log),
		Room:        NewRoomRepository(db, log),
		Reservation: NewReservationRepository(db, log),
		Task:        NewTaskRepository(db, log),
	}
}
