package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
)

// ClientRef identifies (or describes) the customer behind a CRM write.
// Resolution order: phone match, then FallbackClientID, then create.
type ClientRef struct {
	Phone            string
	Name             string
	FallbackClientID snowflake.ID
}

type CreateOrderRequest struct {
	CompanyID   snowflake.ID
	Client      ClientRef
	ServiceName string
	Address     string
	Comment     string

	// Appointment links the order to an already-created calendar event. When
	// set, the order lands on the appointments board.
	Appointment *CalendarEvent
}

type CreateAppointmentRequest struct {
	CompanyID snowflake.ID
	Client    ClientRef
	Title     string
	Address   string
	StartsAt  time.Time
	Duration  time.Duration

	Settings companydomain.Settings
}

type Service interface {
	// ResolveClient finds the client by phone, falls back to the referenced
	// id, and finally creates a new record.
	ResolveClient(ctx context.Context, companyID snowflake.ID, ref ClientRef) (*Client, error)

	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)

	// CreateAppointment validates the slot against business hours and
	// blocking events before persisting.
	CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*CalendarEvent, error)

	// DeleteOrder and DeleteEvent clear the soft cross-link on the opposite
	// side before removing the record.
	DeleteOrder(ctx context.Context, companyID, orderID snowflake.ID) error
	DeleteEvent(ctx context.Context, companyID, eventID snowflake.ID) error

	// UpdateEventStatus persists the transition and propagates it to linked
	// tasks with sync_with_calendar enabled.
	UpdateEventStatus(ctx context.Context, companyID, eventID snowflake.ID, status EventStatus) (*CalendarEvent, error)

	CreateTask(ctx context.Context, task *Task) (*Task, error)
	CreateQuestion(ctx context.Context, question *Question) (*Question, error)

	// UpcomingBookings lists blocking events starting at or after `from`,
	// soonest first, capped at limit.
	UpcomingBookings(ctx context.Context, companyID snowflake.ID, from time.Time, limit int) ([]CalendarEvent, error)

	// NextAvailableSlots computes up to n free slot start times after `from`,
	// honoring business hours, existing bookings, and the configured slot,
	// buffer and max-days-ahead settings.
	NextAvailableSlots(ctx context.Context, companyID snowflake.ID, settings companydomain.Settings, from time.Time, n int) ([]time.Time, error)
}

var (
	ErrClientNotFound        = errors.New("client_not_found")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrEventNotFound         = errors.New("event_not_found")
	ErrInvalidSchedule       = errors.New("invalid_schedule")
	ErrOutsideBusinessHours  = errors.New("outside_business_hours")
	ErrSlotOccupied          = errors.New("slot_occupied")
	ErrMissingRequiredFields = errors.New("missing_required_fields")
)
