package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	conversationdomain "github.com/chatlyhq/chatly/internal/conversation/domain"
	crmdomain "github.com/chatlyhq/chatly/internal/crm/domain"
	"go.uber.org/zap"
)

var (
	actionBlockRe = regexp.MustCompile(`(?s)<crm_action>\s*(\{.*?\})\s*</crm_action>`)
	dateRe        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe        = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

const actionConfirmation = "Done! Your request has been saved."

type crmAction struct {
	Action          string `json:"action"`
	Phone           string `json:"phone"`
	ClientName      string `json:"client_name"`
	ServiceName     string `json:"service_name"`
	Address         string `json:"address"`
	Comment         string `json:"comment"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// executeActions scans the model response for crm_action blocks, applies the
// valid ones and strips all of them from the customer-visible text. Every
// failure path is silent: the textual reply always goes out.
func (d *Driver) executeActions(ctx context.Context, in conversationdomain.Inbound, settings companydomain.Settings, response string) string {
	matches := actionBlockRe.FindAllStringSubmatch(response, -1)

	applied := false
	for _, match := range matches {
		var action crmAction
		if err := json.Unmarshal([]byte(match[1]), &action); err != nil {
			d.log.Warn("unparseable crm action", zap.Error(err))
			continue
		}
		if d.applyAction(ctx, in, settings, action) {
			applied = true
		}
	}

	text := strings.TrimSpace(actionBlockRe.ReplaceAllString(response, ""))
	if text == "" && applied {
		text = actionConfirmation
	}
	return text
}

func (d *Driver) applyAction(ctx context.Context, in conversationdomain.Inbound, settings companydomain.Settings, action crmAction) bool {
	log := d.log.With(
		zap.String("chat_id", in.Chat.ID.String()),
		zap.String("action", action.Action),
	)

	if action.Phone == "" || action.ServiceName == "" || action.Address == "" {
		log.Debug("crm action missing required fields")
		return false
	}

	clientRef := crmdomain.ClientRef{
		Phone: action.Phone,
		Name:  action.ClientName,
	}
	if linked, ok := in.Chat.LinkedClientID(); ok {
		clientRef.FallbackClientID = linked
	}

	var event *crmdomain.CalendarEvent
	if action.Action == "create_appointment" {
		var ok bool
		event, ok = d.createAppointment(ctx, in, settings, clientRef, action, log)
		if !ok {
			return false
		}
	} else if action.Action != "create_order" {
		log.Debug("unknown crm action")
		return false
	}

	order, err := d.crmSvc.CreateOrder(ctx, crmdomain.CreateOrderRequest{
		CompanyID:   in.Company.ID,
		Client:      clientRef,
		ServiceName: action.ServiceName,
		Address:     action.Address,
		Comment:     action.Comment,
		Appointment: event,
	})
	if err != nil {
		log.Warn("crm order rejected", zap.Error(err))
		return event != nil
	}

	// Remember the customer for future turns.
	if err := d.chatSvc.PatchMetadata(ctx, in.Chat, chatdomain.ClientPatch(order.ClientID)); err != nil {
		log.Warn("chat client link not saved", zap.Error(err))
	}
	return true
}

func (d *Driver) createAppointment(
	ctx context.Context,
	in conversationdomain.Inbound,
	settings companydomain.Settings,
	clientRef crmdomain.ClientRef,
	action crmAction,
	log *zap.Logger,
) (*crmdomain.CalendarEvent, bool) {
	if !dateRe.MatchString(action.Date) || !timeRe.MatchString(action.Time) {
		log.Debug("crm appointment with malformed date or time")
		return nil, false
	}
	if action.DurationMinutes < 15 || action.DurationMinutes > 720 {
		log.Debug("crm appointment with out-of-range duration")
		return nil, false
	}

	startsAt, err := time.ParseInLocation("2006-01-02 15:04", action.Date+" "+action.Time, settings.Location())
	if err != nil {
		log.Debug("crm appointment with invalid schedule", zap.Error(err))
		return nil, false
	}

	event, err := d.crmSvc.CreateAppointment(ctx, crmdomain.CreateAppointmentRequest{
		CompanyID: in.Company.ID,
		Client:    clientRef,
		Title:     action.ServiceName,
		Address:   action.Address,
		StartsAt:  startsAt,
		Duration:  time.Duration(action.DurationMinutes) * time.Minute,
		Settings:  settings,
	})
	if err != nil {
		log.Debug("crm appointment rejected", zap.Error(err))
		return nil, false
	}
	return event, true
}
