package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	"github.com/chatlyhq/chatly/internal/clock"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	crmdomain "github.com/chatlyhq/chatly/internal/crm/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// -- Mocks --

type crmMock struct {
	orders       []crmdomain.CreateOrderRequest
	appointments []crmdomain.CreateAppointmentRequest

	appointmentErr error
}

func (m *crmMock) ResolveClient(_ context.Context, companyID snowflake.ID, ref crmdomain.ClientRef) (*crmdomain.Client, error) {
	return &crmdomain.Client{ID: 77, CompanyID: companyID, Phone: ref.Phone}, nil
}

func (m *crmMock) CreateOrder(_ context.Context, req crmdomain.CreateOrderRequest) (*crmdomain.Order, error) {
	m.orders = append(m.orders, req)
	status := crmdomain.OrderStatusNew
	if req.Appointment != nil {
		status = crmdomain.OrderStatusAppointments
	}
	return &crmdomain.Order{ID: 88, CompanyID: req.CompanyID, ClientID: 77, Status: status}, nil
}

func (m *crmMock) CreateAppointment(_ context.Context, req crmdomain.CreateAppointmentRequest) (*crmdomain.CalendarEvent, error) {
	if m.appointmentErr != nil {
		return nil, m.appointmentErr
	}
	m.appointments = append(m.appointments, req)
	return &crmdomain.CalendarEvent{
		ID:        99,
		CompanyID: req.CompanyID,
		StartsAt:  req.StartsAt.UTC(),
		EndsAt:    req.StartsAt.Add(req.Duration).UTC(),
		Status:    crmdomain.EventStatusScheduled,
	}, nil
}

func (m *crmMock) DeleteOrder(context.Context, snowflake.ID, snowflake.ID) error { return nil }
func (m *crmMock) DeleteEvent(context.Context, snowflake.ID, snowflake.ID) error { return nil }
func (m *crmMock) UpdateEventStatus(context.Context, snowflake.ID, snowflake.ID, crmdomain.EventStatus) (*crmdomain.CalendarEvent, error) {
	return nil, nil
}
func (m *crmMock) CreateTask(context.Context, *crmdomain.Task) (*crmdomain.Task, error) {
	return nil, nil
}
func (m *crmMock) CreateQuestion(context.Context, *crmdomain.Question) (*crmdomain.Question, error) {
	return nil, nil
}
func (m *crmMock) UpcomingBookings(context.Context, snowflake.ID, time.Time, int) ([]crmdomain.CalendarEvent, error) {
	return nil, nil
}
func (m *crmMock) NextAvailableSlots(context.Context, snowflake.ID, companydomain.Settings, time.Time, int) ([]time.Time, error) {
	return nil, nil
}

type chatMock struct {
	patches []map[string]any
}

func (m *chatMock) GetByID(context.Context, snowflake.ID) (*chatdomain.Chat, error) { return nil, nil }
func (m *chatMock) FirstOrCreate(context.Context, snowflake.ID, assistantdomain.Channel, string, chatdomain.ChatAttrs) (*chatdomain.Chat, error) {
	return nil, nil
}
func (m *chatMock) AppendInbound(context.Context, *chatdomain.Chat, []chatdomain.Part) ([]chatdomain.ChatMessage, error) {
	return nil, nil
}
func (m *chatMock) RecordOutbound(context.Context, *chatdomain.Chat, chatdomain.OutboundMessage) (*chatdomain.ChatMessage, error) {
	return nil, nil
}
func (m *chatMock) PatchMetadata(_ context.Context, _ *chatdomain.Chat, patch map[string]any) error {
	m.patches = append(m.patches, patch)
	return nil
}
func (m *chatMock) ListMessages(context.Context, snowflake.ID, int) ([]chatdomain.ChatMessage, error) {
	return nil, nil
}

func newActionDriver(crm *crmMock, chat *chatMock) *Driver {
	return &Driver{
		log:     zap.NewNop(),
		clock:   clock.NewFakeClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)),
		crmSvc:  crm,
		chatSvc: chat,
	}
}

func actionSettings() companydomain.Settings {
	settings := companydomain.DefaultSettings()
	settings.Appointments.Enabled = true
	return settings
}

// -- Tests --

func TestExecuteActionsCreatesOrderAndStrips(t *testing.T) {
	crm := &crmMock{}
	chat := &chatMock{}
	d := newActionDriver(crm, chat)

	response := `Perfect, I have everything I need.
<crm_action>{"action":"create_order","phone":"+34600111222","client_name":"Ana","service_name":"Haircut","address":"Main St 1"}</crm_action>`

	text := d.executeActions(context.Background(), inboundTurn(), actionSettings(), response)

	assert.Equal(t, "Perfect, I have everything I need.", text)
	require.Len(t, crm.orders, 1)
	assert.Equal(t, "Haircut", crm.orders[0].ServiceName)
	assert.Nil(t, crm.orders[0].Appointment)
	require.Len(t, chat.patches, 1)
}

func TestExecuteActionsAppointmentPairsOrder(t *testing.T) {
	crm := &crmMock{}
	chat := &chatMock{}
	d := newActionDriver(crm, chat)

	response := `<crm_action>{"action":"create_appointment","phone":"+34600111222","service_name":"Haircut","address":"Main St 1","date":"2025-06-03","time":"10:00","duration_minutes":60}</crm_action>`

	text := d.executeActions(context.Background(), inboundTurn(), actionSettings(), response)

	// Empty remainder earns the confirmation phrase.
	assert.Equal(t, actionConfirmation, text)
	require.Len(t, crm.appointments, 1)
	require.Len(t, crm.orders, 1)
	require.NotNil(t, crm.orders[0].Appointment)
	assert.EqualValues(t, 99, crm.orders[0].Appointment.ID)
}

func TestExecuteActionsRejectsSilently(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{
			name:     "missing phone",
			response: `<crm_action>{"action":"create_order","service_name":"Haircut","address":"Main St 1"}</crm_action>`,
		},
		{
			name:     "malformed json",
			response: `<crm_action>{not json}</crm_action>`,
		},
		{
			name:     "bad date format",
			response: `<crm_action>{"action":"create_appointment","phone":"+34","service_name":"x","address":"y","date":"03/06/2025","time":"10:00","duration_minutes":60}</crm_action>`,
		},
		{
			name:     "bad time format",
			response: `<crm_action>{"action":"create_appointment","phone":"+34","service_name":"x","address":"y","date":"2025-06-03","time":"25:00","duration_minutes":60}</crm_action>`,
		},
		{
			name:     "duration too short",
			response: `<crm_action>{"action":"create_appointment","phone":"+34","service_name":"x","address":"y","date":"2025-06-03","time":"10:00","duration_minutes":10}</crm_action>`,
		},
		{
			name:     "unknown action",
			response: `<crm_action>{"action":"delete_everything","phone":"+34","service_name":"x","address":"y"}</crm_action>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crm := &crmMock{}
			chat := &chatMock{}
			d := newActionDriver(crm, chat)

			text := d.executeActions(context.Background(), inboundTurn(), actionSettings(), "Sure! "+tt.response)

			// The tag is stripped and the textual reply survives.
			assert.Equal(t, "Sure!", text)
			assert.Empty(t, crm.orders)
			assert.Empty(t, crm.appointments)
		})
	}
}

func TestExecuteActionsSlotRejectionKeepsReply(t *testing.T) {
	crm := &crmMock{appointmentErr: crmdomain.ErrSlotOccupied}
	chat := &chatMock{}
	d := newActionDriver(crm, chat)

	response := `That slot works for me!
<crm_action>{"action":"create_appointment","phone":"+34600111222","service_name":"Haircut","address":"Main St 1","date":"2025-06-03","time":"10:00","duration_minutes":60}</crm_action>`

	text := d.executeActions(context.Background(), inboundTurn(), actionSettings(), response)

	assert.Equal(t, "That slot works for me!", text)
	assert.Empty(t, crm.orders)
}

func TestExecuteActionsNoBlocksPassThrough(t *testing.T) {
	d := newActionDriver(&crmMock{}, &chatMock{})
	text := d.executeActions(context.Background(), inboundTurn(), actionSettings(), "We open at 9am.")
	assert.Equal(t, "We open at 9am.", text)
}
