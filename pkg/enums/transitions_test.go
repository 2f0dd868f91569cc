package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignmentStatusLeavesPendingOnlyOnce(t *testing.T) {
	for _, next := range []AssignmentStatus{
		AssignmentStatusVendorConfirmedFull,
		AssignmentStatusVendorConfirmedPartial,
		AssignmentStatusVendorDeclined,
	} {
		assert.True(t, AssignmentStatusPendingConfirmation.CanTransitionTo(next), next)
		assert.True(t, next.IsVendorDecision())
		assert.False(t, next.CanTransitionTo(AssignmentStatusPendingConfirmation))
	}
	assert.False(t, AssignmentStatusVendorDeclined.CanTransitionTo(AssignmentStatusVendorConfirmedFull))
	assert.False(t, AssignmentStatusPendingConfirmation.CanTransitionTo(AssignmentStatusDispatched))
	assert.False(t, AssignmentStatusInvoiced.IsVendorDecision())
}

func TestAssignmentStatusDispatchable(t *testing.T) {
	assert.True(t, AssignmentStatusVendorConfirmedFull.IsDispatchable())
	assert.True(t, AssignmentStatusVendorConfirmedPartial.IsDispatchable())
	assert.True(t, AssignmentStatusInvoiced.IsDispatchable())
	assert.False(t, AssignmentStatusPendingConfirmation.IsDispatchable())
	assert.False(t, AssignmentStatusVendorDeclined.IsDispatchable())
	assert.False(t, AssignmentStatusDispatched.IsDispatchable())
}

func TestDispatchStatusIsMonotonic(t *testing.T) {
	assert.True(t, DispatchStatusDispatched.CanTransitionTo(DispatchStatusInTransit))
	assert.True(t, DispatchStatusDispatched.CanTransitionTo(DispatchStatusDelivered))
	assert.True(t, DispatchStatusInTransit.CanTransitionTo(DispatchStatusFailed))
	assert.False(t, DispatchStatusInTransit.CanTransitionTo(DispatchStatusDispatched))
	assert.False(t, DispatchStatusDispatched.CanTransitionTo(DispatchStatusDispatched))
	assert.False(t, DispatchStatusDelivered.CanTransitionTo(DispatchStatusFailed))
	assert.False(t, DispatchStatusFailed.CanTransitionTo(DispatchStatusInTransit))
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusReceived.CanTransitionTo(OrderStatusProcessing))
	assert.True(t, OrderStatusAssigned.CanTransitionTo(OrderStatusAssigned))
	assert.True(t, OrderStatusProcessing.CanTransitionTo(OrderStatusFulfilled))
	assert.False(t, OrderStatusProcessing.CanTransitionTo(OrderStatusReceived))
	assert.False(t, OrderStatusProcessing.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusClosed.IsTerminal())
}

func TestAggregateGRNStatus(t *testing.T) {
	ok, bad := GRNItemStatusVerifiedOK, GRNItemStatusVerifiedMismatch
	assert.Equal(t, GRNStatusVerifiedOK, AggregateGRNStatus([]GRNItemStatus{ok, ok}))
	assert.Equal(t, GRNStatusVerifiedMismatch, AggregateGRNStatus([]GRNItemStatus{bad}))
	assert.Equal(t, GRNStatusPartiallyVerified, AggregateGRNStatus([]GRNItemStatus{ok, bad}))
	assert.Equal(t, GRNStatusPendingVerification, AggregateGRNStatus(nil))
}

func TestParseHelpers(t *testing.T) {
	status, err := ParseAssignmentStatus("VENDOR_CONFIRMED_PARTIAL")
	require.NoError(t, err)
	assert.Equal(t, AssignmentStatusVendorConfirmedPartial, status)

	_, err = ParseDispatchStatus("LOST")
	require.Error(t, err)

	action, err := ParseAuditAction("grn:verified_mismatch")
	require.NoError(t, err)
	assert.Equal(t, AuditGRNVerifiedMismatch, action)
}
