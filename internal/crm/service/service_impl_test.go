package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatlyhq/chatly/internal/clock"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	crmdomain "github.com/chatlyhq/chatly/internal/crm/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&crmdomain.Client{},
		&crmdomain.Order{},
		&crmdomain.CalendarEvent{},
		&crmdomain.Task{},
		&crmdomain.Question{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))

	sync := NewCalendarTaskSync(CalendarTaskSyncParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fake,
	})
	svc := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		TaskSync: sync,
	}).(*Service)
	return svc, fake
}

// allDaySettings opens every weekday 09:00-18:00 UTC with appointments on.
func allDaySettings() companydomain.Settings {
	settings := companydomain.DefaultSettings()
	for key, day := range settings.BusinessHours {
		day.Closed = false
		day.Open = "09:00"
		day.Close = "18:00"
		settings.BusinessHours[key] = day
	}
	settings.Appointments.Enabled = true
	return settings
}

func TestResolveClientPrefersPhoneMatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	companyID := snowflake.ID(100)

	first, err := svc.ResolveClient(ctx, companyID, crmdomain.ClientRef{Phone: "+34600111222", Name: "Ana"})
	require.NoError(t, err)

	second, err := svc.ResolveClient(ctx, companyID, crmdomain.ClientRef{Phone: "+34600111222", Name: "Ana Maria"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// No phone, no fallback: a fresh client is created.
	third, err := svc.ResolveClient(ctx, companyID, crmdomain.ClientRef{Name: "Unknown"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	// A chat-linked id resolves when the phone is absent.
	fourth, err := svc.ResolveClient(ctx, companyID, crmdomain.ClientRef{FallbackClientID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, fourth.ID)
}

func TestAppointmentCollision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	companyID := snowflake.ID(100)
	settings := allDaySettings()

	// Monday 2025-06-02.
	at := func(hour, min int) time.Time {
		return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
	}
	book := func(start time.Time, d time.Duration) (*crmdomain.CalendarEvent, error) {
		return svc.CreateAppointment(ctx, crmdomain.CreateAppointmentRequest{
			CompanyID: companyID,
			Client:    crmdomain.ClientRef{Phone: "+34600111222"},
			Title:     "Haircut",
			StartsAt:  start,
			Duration:  d,
			Settings:  settings,
		})
	}

	first, err := book(at(10, 0), time.Hour)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Overlapping the occupied slot is rejected with no side effect.
	_, err = book(at(10, 30), 30*time.Minute)
	require.ErrorIs(t, err, crmdomain.ErrSlotOccupied)

	// The half-open interval frees the boundary minute.
	_, err = book(at(11, 0), 30*time.Minute)
	require.NoError(t, err)
}

func TestAppointmentValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	settings := allDaySettings()

	req := crmdomain.CreateAppointmentRequest{
		CompanyID: 100,
		Client:    crmdomain.ClientRef{Phone: "+34600111222"},
		Title:     "Haircut",
		Settings:  settings,
	}

	req.StartsAt = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	req.Duration = 10 * time.Minute
	_, err := svc.CreateAppointment(ctx, req)
	assert.ErrorIs(t, err, crmdomain.ErrInvalidSchedule)

	req.Duration = 13 * time.Hour
	_, err = svc.CreateAppointment(ctx, req)
	assert.ErrorIs(t, err, crmdomain.ErrInvalidSchedule)

	// 08:00 start is before opening.
	req.StartsAt = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	req.Duration = 30 * time.Minute
	_, err = svc.CreateAppointment(ctx, req)
	assert.ErrorIs(t, err, crmdomain.ErrOutsideBusinessHours)

	// 17:45 + 30m runs past closing.
	req.StartsAt = time.Date(2025, 6, 2, 17, 45, 0, 0, time.UTC)
	_, err = svc.CreateAppointment(ctx, req)
	assert.ErrorIs(t, err, crmdomain.ErrOutsideBusinessHours)
}

func TestAppointmentBufferExtendsCollisionWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	settings := allDaySettings()
	settings.Appointments.BufferMinutes = 15

	book := func(hour, min int, d time.Duration) error {
		_, err := svc.CreateAppointment(ctx, crmdomain.CreateAppointmentRequest{
			CompanyID: 100,
			Client:    crmdomain.ClientRef{Phone: "+34600111222"},
			Title:     "Massage",
			StartsAt:  time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC),
			Duration:  d,
			Settings:  settings,
		})
		return err
	}

	require.NoError(t, book(10, 0, time.Hour))
	// Back-to-back is fine without a buffer but rejected with one.
	assert.ErrorIs(t, book(11, 0, 30*time.Minute), crmdomain.ErrSlotOccupied)
	assert.NoError(t, book(11, 15, 30*time.Minute))
}

func TestOrderEventCrossLinks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	companyID := snowflake.ID(100)
	settings := allDaySettings()

	event, err := svc.CreateAppointment(ctx, crmdomain.CreateAppointmentRequest{
		CompanyID: companyID,
		Client:    crmdomain.ClientRef{Phone: "+34600111222"},
		Title:     "Haircut",
		StartsAt:  time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		Duration:  time.Hour,
		Settings:  settings,
	})
	require.NoError(t, err)

	order, err := svc.CreateOrder(ctx, crmdomain.CreateOrderRequest{
		CompanyID:   companyID,
		Client:      crmdomain.ClientRef{Phone: "+34600111222"},
		ServiceName: "Haircut",
		Address:     "Main St 1",
		Appointment: event,
	})
	require.NoError(t, err)
	assert.Equal(t, crmdomain.OrderStatusAppointments, order.Status)

	linkedEvent, ok := order.LinkedEventID()
	require.True(t, ok)
	assert.Equal(t, event.ID, linkedEvent)
	linkedOrder, ok := event.LinkedOrderID()
	require.True(t, ok)
	assert.Equal(t, order.ID, linkedOrder)

	// Deleting the order clears the event-side reference.
	require.NoError(t, svc.DeleteOrder(ctx, companyID, order.ID))
	reloaded, err := svc.eventRepo.FindOne(ctx, &crmdomain.CalendarEvent{ID: event.ID})
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	_, ok = reloaded.LinkedOrderID()
	assert.False(t, ok)
}

func TestCalendarTaskSync(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	companyID := snowflake.ID(100)
	settings := allDaySettings()

	event, err := svc.CreateAppointment(ctx, crmdomain.CreateAppointmentRequest{
		CompanyID: companyID,
		Client:    crmdomain.ClientRef{Phone: "+34600111222"},
		Title:     "Haircut",
		StartsAt:  time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		Duration:  time.Hour,
		Settings:  settings,
	})
	require.NoError(t, err)

	eventID := event.ID
	synced, err := svc.CreateTask(ctx, &crmdomain.Task{
		CompanyID:        companyID,
		CalendarEventID:  &eventID,
		SyncWithCalendar: true,
		Title:            "Prepare station",
	})
	require.NoError(t, err)

	unsynced, err := svc.CreateTask(ctx, &crmdomain.Task{
		CompanyID:       companyID,
		CalendarEventID: &eventID,
		Title:           "Manual follow-up",
	})
	require.NoError(t, err)

	_, err = svc.UpdateEventStatus(ctx, companyID, event.ID, crmdomain.EventStatusCompleted)
	require.NoError(t, err)

	got, err := svc.taskRepo.FindOne(ctx, &crmdomain.Task{ID: synced.ID})
	require.NoError(t, err)
	assert.Equal(t, crmdomain.TaskStatusDone, got.Status)
	assert.Equal(t, string(crmdomain.TaskStatusDone), got.Board)
	require.NotNil(t, got.CompletedAt)

	manual, err := svc.taskRepo.FindOne(ctx, &crmdomain.Task{ID: unsynced.ID})
	require.NoError(t, err)
	assert.Equal(t, crmdomain.TaskStatusOpen, manual.Status)
	assert.Nil(t, manual.CompletedAt)

	// Cancellation propagates as canceled, not done.
	_, err = svc.UpdateEventStatus(ctx, companyID, event.ID, crmdomain.EventStatusCanceled)
	require.NoError(t, err)
	got, err = svc.taskRepo.FindOne(ctx, &crmdomain.Task{ID: synced.ID})
	require.NoError(t, err)
	assert.Equal(t, crmdomain.TaskStatusCanceled, got.Status)
}

func TestNextAvailableSlotsSkipBookedAndClosed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	companyID := snowflake.ID(100)
	settings := allDaySettings()
	settings.Appointments.SlotMinutes = 60

	_, err := svc.CreateAppointment(ctx, crmdomain.CreateAppointmentRequest{
		CompanyID: companyID,
		Client:    crmdomain.ClientRef{Phone: "+34600111222"},
		Title:     "Haircut",
		StartsAt:  time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		Duration:  time.Hour,
		Settings:  settings,
	})
	require.NoError(t, err)

	from := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	slots, err := svc.NextAvailableSlots(ctx, companyID, settings, from, 3)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Equal(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)))
	assert.True(t, slots[1].Equal(time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)))

	// Disabled appointments produce no suggestions.
	settings.Appointments.Enabled = false
	slots, err = svc.NextAvailableSlots(ctx, companyID, settings, from, 3)
	require.NoError(t, err)
	assert.Empty(t, slots)
}
