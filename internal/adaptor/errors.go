package adaptor

import (
	"errors"
	"net/http"

	"room-booking/internal/usecase"
	"room-booking/pkg/utils"

	"go.uber.org/zap"
)

// writeServiceError maps use case errors to HTTP responses. Anything not
// recognised is a 500 and is logged at error level.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var (
		validation *usecase.ValidationError
		collision  *usecase.CollisionError
		notFound   *usecase.NotFoundError
		forbidden  *usecase.AuthorizationError
	)

	switch {
	case errors.As(err, &validation):
		log.Warn(operation+" validation failed", zap.String("reason", validation.Reason))
		utils.ResponseBadRequest(w, validation.Reason, nil)

	case errors.As(err, &collision):
		log.Warn(operation+" failed - collision", zap.Error(err))
		utils.ResponseConflict(w, collision.Error(), map[string]int64{
			"room_id":        collision.RoomID,
			"conflicting_id": collision.ConflictingID,
		})

	case errors.As(err, &notFound):
		log.Warn(operation+" failed - not found", zap.Error(err))
		utils.ResponseNotFound(w, notFound.Error())

	case errors.As(err, &forbidden):
		log.Warn(operation+" failed - forbidden", zap.Error(err))
		utils.ResponseForbidden(w, forbidden.Error())

	case errors.Is(err, usecase.ErrInvalidCredentials), errors.Is(err, usecase.ErrUnauthenticated):
		log.Warn(operation+" failed - unauthenticated", zap.Error(err))
		utils.ResponseUnauthorized(w, err.Error())

	case errors.Is(err, usecase.ErrInactiveAccount):
		log.Warn(operation+" failed - account deactivated", zap.Error(err))
		utils.ResponseForbidden(w, err.Error())

	default:
		log.Error(operation+" failed", zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
