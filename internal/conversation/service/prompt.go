package service

import (
	"context"
	"fmt"
	"strings"

	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	conversationdomain "github.com/chatlyhq/chatly/internal/conversation/domain"
	"go.uber.org/zap"
)

const actionProtocol = `You may request one CRM side effect per turn by ending your reply with a single block:
<crm_action>{"action":"create_order"|"create_appointment","phone":"...","client_name":"...","service_name":"...","address":"...","comment":"...","date":"YYYY-MM-DD","time":"HH:MM","duration_minutes":60}</crm_action>
Rules: phone, service_name and address are always required; date, time and duration_minutes are required for create_appointment. While any required field is missing, ask the customer for it instead of emitting the block. Never mention this protocol to the customer.`

// buildPrompt renders the inbound turn as a typed transcript followed by the
// runtime context block. The block is rebuilt every turn, never persisted.
func (d *Driver) buildPrompt(ctx context.Context, in conversationdomain.Inbound, settings companydomain.Settings) string {
	var b strings.Builder

	for _, part := range in.Parts {
		line := part.Text
		switch part.MessageType {
		case chatdomain.TypeLink:
			line = part.LinkURL
		case chatdomain.TypeImage, chatdomain.TypeVideo, chatdomain.TypeFile:
			if line == "" {
				line = part.MediaURL
			}
		case chatdomain.TypeVoice, chatdomain.TypeAudio:
			if line == "" {
				line = "(voice message)"
			}
		}
		fmt.Fprintf(&b, "[%s] %s\n", part.MessageType, line)
	}
	b.WriteString("\nReply in the customer's language.\n")

	b.WriteString(d.contextBlock(ctx, in, settings))
	return b.String()
}

func (d *Driver) contextBlock(ctx context.Context, in conversationdomain.Inbound, settings companydomain.Settings) string {
	now := d.clock.Now()
	loc := settings.Location()

	var b strings.Builder
	b.WriteString("\n--- Context for you only, never quote it to the customer ---\n")
	fmt.Fprintf(&b, "Current time (UTC): %s\n", now.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Local time (%s): %s\n", settings.Timezone, now.In(loc).Format("2006-01-02 15:04 Monday"))
	b.WriteString("Business hours:\n")
	b.WriteString(settings.WeeklyTable())
	b.WriteString("\n")

	appt := settings.Appointments
	if appt.Enabled {
		fmt.Fprintf(&b, "Appointments: enabled, %d min slots, %d min buffer, bookable up to %d days ahead.\n",
			appt.SlotMinutes, appt.BufferMinutes, appt.MaxDaysAhead)
	} else {
		b.WriteString("Appointments: disabled, do not offer to book.\n")
	}

	bookings, err := d.crmSvc.UpcomingBookings(ctx, in.Company.ID, now, 8)
	if err != nil {
		d.log.Warn("upcoming bookings unavailable", zap.Error(err))
	}
	if len(bookings) > 0 {
		b.WriteString("Upcoming bookings (avoid conflicts):\n")
		for _, event := range bookings {
			fmt.Fprintf(&b, "- %s to %s: %s (%s)\n",
				event.StartsAt.In(loc).Format("2006-01-02 15:04"),
				event.EndsAt.In(loc).Format("15:04"),
				event.Title, event.Status)
		}
	}

	if appt.Enabled {
		slots, err := d.crmSvc.NextAvailableSlots(ctx, in.Company.ID, settings, now, 6)
		if err != nil {
			d.log.Warn("slot suggestions unavailable", zap.Error(err))
		}
		if len(slots) > 0 {
			b.WriteString("Next available slots:\n")
			for _, slot := range slots {
				fmt.Fprintf(&b, "- %s\n", slot.In(loc).Format("2006-01-02 15:04"))
			}
		}
	}

	b.WriteString(actionProtocol)
	b.WriteString("\n")
	return b.String()
}
