package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bookings/entity"
	"bookings/lifecycle"
)

func TestAvailableActions(t *testing.T) {
	testCases := []struct {
		status         entity.BookingStatus
		feedbackStatus bool
		role           entity.Role
		expected       []entity.BookingAction
	}{
		{entity.BookingStatusPending, false, entity.RoleProvider, []entity.BookingAction{entity.ActionAccept, entity.ActionDecline}},
		{entity.BookingStatusPending, false, entity.RoleCustomer, []entity.BookingAction{entity.ActionCancel}},
		{entity.BookingStatusConfirm, false, entity.RoleProvider, []entity.BookingAction{entity.ActionRequestCompletion, entity.ActionVerifyCode}},
		{entity.BookingStatusConfirm, false, entity.RoleCustomer, []entity.BookingAction{entity.ActionVerifyCode}},
		{entity.BookingStatusCompleted, false, entity.RoleCustomer, []entity.BookingAction{entity.ActionSubmitFeedback}},
		{entity.BookingStatusCompleted, true, entity.RoleCustomer, []entity.BookingAction{}},
		{entity.BookingStatusCompleted, false, entity.RoleProvider, []entity.BookingAction{}},
		{entity.BookingStatusRejected, false, entity.RoleProvider, []entity.BookingAction{}},
		{entity.BookingStatusCancel, false, entity.RoleCustomer, []entity.BookingAction{}},
		{entity.BookingStatusPending, false, entity.RoleAdmin, []entity.BookingAction{}},
		{entity.BookingStatusConfirm, false, entity.RoleAdmin, []entity.BookingAction{}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.status)+"/"+string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.expected, lifecycle.AvailableActions(tc.status, tc.feedbackStatus, tc.role))
		})
	}
}

func TestActionsFor_nonParty(t *testing.T) {
	booking := entity.Booking{
		Customer: entity.CustomerSnapshot{Username: "alice"},
		Provider: entity.ProviderSnapshot{Username: "bob"},
		Status:   entity.BookingStatusPending,
	}

	assert.Equal(t, []entity.BookingAction{entity.ActionCancel}, lifecycle.ActionsFor(booking, entity.Actor{Username: "alice", Role: entity.RoleCustomer}))
	assert.Empty(t, lifecycle.ActionsFor(booking, entity.Actor{Username: "carol", Role: entity.RoleProvider}))
	// a provider named like the customer is still not the customer
	assert.Empty(t, lifecycle.ActionsFor(booking, entity.Actor{Username: "alice", Role: entity.RoleProvider}))
}

func TestNextStatus_reachability(t *testing.T) {
	actions := []entity.BookingAction{
		entity.ActionAccept,
		entity.ActionDecline,
		entity.ActionCancel,
		entity.ActionRequestCompletion,
		entity.ActionVerifyCode,
	}

	// completed must only be reachable through confirm
	reachable := map[entity.BookingStatus][]entity.BookingStatus{}
	for _, from := range []entity.BookingStatus{
		entity.BookingStatusPending,
		entity.BookingStatusConfirm,
		entity.BookingStatusRejected,
		entity.BookingStatusCompleted,
		entity.BookingStatusCancel,
	} {
		for _, action := range actions {
			if to, ok := lifecycle.NextStatus(from, action); ok {
				reachable[from] = append(reachable[from], to)
			}
		}

		if from.IsTerminal() {
			assert.Empty(t, reachable[from], "terminal status %s has outbound transitions", from)
		}
	}

	assert.ElementsMatch(t,
		[]entity.BookingStatus{entity.BookingStatusConfirm, entity.BookingStatusRejected, entity.BookingStatusCancel},
		reachable[entity.BookingStatusPending],
	)
	assert.ElementsMatch(t,
		[]entity.BookingStatus{entity.BookingStatusConfirm, entity.BookingStatusCompleted},
		reachable[entity.BookingStatusConfirm],
	)
}
