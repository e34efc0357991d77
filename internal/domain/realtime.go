package domain

import "github.com/google/uuid"

// Frame is a typed realtime message pushed over a live connection.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Frame types pushed by the server.
const (
	FrameAuthSuccess        = "auth_success"
	FrameForceLogout        = "force_logout"
	FrameNewNotification    = "new_notification"
	FrameBookingCreated     = "booking_created"
	FrameCheckedIn          = "checked_in"
	FrameInjectionCompleted = "injection_completed"
	FrameMarkedNoShow       = "marked_no_show"
	FrameBookingCancelled   = "booking_cancelled"
	FrameSlotsUpdated       = "slots_updated"
)

// Notifier fans out events to live connections. Delivery is at-most-once and
// best-effort: a closed or missing connection is silently skipped and must
// never fail the operation that produced the event.
type Notifier interface {
	// Notify pushes a frame to the user's connection, if any.
	Notify(userID uuid.UUID, frame Frame)

	// BroadcastToStaff pushes a frame to every staff connection registered
	// for the center.
	BroadcastToStaff(centerID uuid.UUID, frame Frame)

	// BroadcastSlotUpdate pushes a lightweight "slots changed, re-query"
	// signal to everyone viewing the center. Payloads stay small; clients
	// re-query instead of trusting a pushed slot list.
	BroadcastSlotUpdate(centerID uuid.UUID, date string)

	// Kick sends force_logout to the user's connection and closes it. The
	// visible half of session supersession.
	Kick(userID uuid.UUID)
}
