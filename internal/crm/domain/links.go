package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	orderAppointmentKey = "appointment"
	eventOrderKey       = "order_id"
)

// AppointmentRef is the order-side half of the soft Order-CalendarEvent link.
type AppointmentRef struct {
	EventID  string `json:"event_id"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

func decode(raw datatypes.JSON) map[string]any {
	meta := map[string]any{}
	if len(raw) == 0 {
		return meta
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return map[string]any{}
	}
	return meta
}

func encode(meta map[string]any) datatypes.JSON {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// LinkAppointment records the event reference on the order metadata.
func (o *Order) LinkAppointment(event *CalendarEvent) {
	meta := decode(o.Metadata)
	meta[orderAppointmentKey] = AppointmentRef{
		EventID:  event.ID.String(),
		StartsAt: event.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:   event.EndsAt.UTC().Format(time.RFC3339),
	}
	o.Metadata = encode(meta)
}

func (o *Order) UnlinkAppointment() {
	meta := decode(o.Metadata)
	delete(meta, orderAppointmentKey)
	o.Metadata = encode(meta)
}

// LinkedEventID returns the calendar event referenced by the order, if any.
func (o *Order) LinkedEventID() (snowflake.ID, bool) {
	meta := decode(o.Metadata)
	ref, ok := meta[orderAppointmentKey].(map[string]any)
	if !ok {
		return 0, false
	}
	raw, _ := ref["event_id"].(string)
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

// LinkOrder records the order reference on the event metadata.
func (e *CalendarEvent) LinkOrder(orderID snowflake.ID) {
	meta := decode(e.Metadata)
	meta[eventOrderKey] = orderID.String()
	e.Metadata = encode(meta)
}

func (e *CalendarEvent) UnlinkOrder() {
	meta := decode(e.Metadata)
	delete(meta, eventOrderKey)
	e.Metadata = encode(meta)
}

// LinkedOrderID returns the order referenced by the event, if any.
func (e *CalendarEvent) LinkedOrderID() (snowflake.ID, bool) {
	meta := decode(e.Metadata)
	raw, ok := meta[eventOrderKey].(string)
	if !ok {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
