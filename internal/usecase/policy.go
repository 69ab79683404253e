package usecase

import "room-booking/internal/data/entity"

const (
	ActionView    = "view"
	ActionConfirm = "confirm"
	ActionCancel  = "cancel"
)

// Authorize allows the owner of a reservation or an admin.
func Authorize(p entity.Principal, action string, r *entity.Reservation) error {
	if p.IsAdmin() {
		return nil
	}
	if p.UserID != 0 && r != nil && r.UserID == p.UserID {
		return nil
	}
	return &AuthorizationError{Action: action}
}
