package lifecycle

import (
	"bookings/entity"
)

type edge struct {
	from entity.BookingStatus
	to   entity.BookingStatus
	// empty role means either party of the booking
	role entity.Role
}

var edges = map[entity.BookingAction]edge{
	entity.ActionAccept:            {from: entity.BookingStatusPending, to: entity.BookingStatusConfirm, role: entity.RoleProvider},
	entity.ActionDecline:           {from: entity.BookingStatusPending, to: entity.BookingStatusRejected, role: entity.RoleProvider},
	entity.ActionCancel:            {from: entity.BookingStatusPending, to: entity.BookingStatusCancel, role: entity.RoleCustomer},
	entity.ActionRequestCompletion: {from: entity.BookingStatusConfirm, to: entity.BookingStatusConfirm, role: entity.RoleProvider},
	entity.ActionVerifyCode:        {from: entity.BookingStatusConfirm, to: entity.BookingStatusCompleted},
}

// actionOrder keeps derived action lists stable.
var actionOrder = []entity.BookingAction{
	entity.ActionAccept,
	entity.ActionDecline,
	entity.ActionCancel,
	entity.ActionRequestCompletion,
	entity.ActionVerifyCode,
	entity.ActionSubmitFeedback,
}

// AvailableActions is the set of actions a viewer with role may take on a booking in
// status. It is derived, never stored.
func AvailableActions(status entity.BookingStatus, feedbackStatus bool, role entity.Role) []entity.BookingAction {
	actions := []entity.BookingAction{}

	for _, action := range actionOrder {
		if action == entity.ActionSubmitFeedback {
			if role == entity.RoleCustomer && status == entity.BookingStatusCompleted && !feedbackStatus {
				actions = append(actions, action)
			}
			continue
		}

		e := edges[action]
		if e.from != status {
			continue
		}
		if !roleMayAct(e.role, role) {
			continue
		}
		actions = append(actions, action)
	}

	return actions
}

// ActionsFor is AvailableActions for a viewer, empty when the viewer is not a party of
// the booking.
func ActionsFor(booking entity.Booking, viewer entity.Actor) []entity.BookingAction {
	if !booking.IsParty(viewer) {
		return []entity.BookingAction{}
	}
	return AvailableActions(booking.Status, booking.FeedbackStatus, viewer.Role)
}

// NextStatus returns the status the action leads to from the current one.
func NextStatus(current entity.BookingStatus, action entity.BookingAction) (entity.BookingStatus, bool) {
	e, ok := edges[action]
	if !ok || e.from != current {
		return "", false
	}
	return e.to, true
}

func roleMayAct(required, role entity.Role) bool {
	if required == "" {
		return role == entity.RoleCustomer || role == entity.RoleProvider
	}
	return required == role
}
