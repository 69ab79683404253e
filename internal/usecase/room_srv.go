package usecase

import (
	"context"
	"fmt"

	"room-booking/internal/data/repository"
	"room-booking/internal/dto/response"

	"go.uber.org/zap"
)

type RoomService interface {
	GetRooms(ctx context.Context) ([]response.RoomResponse, error)
	GetRoomByID(ctx context.Context, roomID int64) (*response.RoomResponse, error)
}

type roomService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewRoomService(repo *repository.Repository, log *zap.Logger) RoomService {
	return &roomService{
		repo: repo,
		log:  log.With(zap.String("service", "room")),
	}
}

func (s *roomService) GetRooms(ctx context.Context) ([]response.RoomResponse, error) {
	rooms, err := s.repo.Room.FindAll(ctx)
	if err != nil {
		s.log.Error("Failed to get rooms from repository", zap.Error(err))
		return nil, fmt.Errorf("get rooms: %w", err)
	}

	// Convert to response
	out := make([]response.RoomResponse, len(rooms))
	for i, room := range rooms {
		out[i] = response.RoomToResponse(room)
	}

	return out, nil
}

func (s *roomService) GetRoomByID(ctx context.Context, roomID int64) (*response.RoomResponse, error) {
	room, err := s.repo.Room.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room %d: %w", roomID, err)
	}
	if room == nil {
		return nil, &NotFoundError{Resource: "room", ID: roomID}
	}

	resp := response.RoomToResponse(room)
	return &resp, nil
}
