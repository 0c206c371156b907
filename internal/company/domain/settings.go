package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// DayHours describes one weekday's opening window as "HH:MM" strings.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// AppointmentSettings configures the booking feature per tenant.
type AppointmentSettings struct {
	Enabled       bool `json:"enabled"`
	SlotMinutes   int  `json:"slot_minutes"`
	BufferMinutes int  `json:"buffer_minutes"`
	MaxDaysAhead  int  `json:"max_days_ahead"`
}

// Settings is the typed form of a company's JSON settings blob. It is parsed
// once at the settings-write boundary with defaults filled in, so downstream
// code never re-validates shape.
type Settings struct {
	Timezone       string              `json:"timezone"`
	BusinessHours  map[string]DayHours `json:"business_hours"`
	Appointments   AppointmentSettings `json:"appointments"`
	RequiredFields []string            `json:"crm_required_fields"`
}

var weekdayKeys = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DefaultSettings returns a fully populated settings value: open 09:00-18:00
// Monday through Friday, appointments off.
func DefaultSettings() Settings {
	hours := make(map[string]DayHours, 7)
	for i, key := range weekdayKeys {
		closed := i == 0 || i == 6
		hours[key] = DayHours{Open: "09:00", Close: "18:00", Closed: closed}
	}
	return Settings{
		Timezone:      "UTC",
		BusinessHours: hours,
		Appointments: AppointmentSettings{
			SlotMinutes:  30,
			MaxDaysAhead: 14,
		},
		RequiredFields: []string{"phone"},
	}
}

// ParseSettings decodes raw into Settings, filling defaults for anything
// missing or malformed. It never fails: a broken blob degrades to defaults.
func ParseSettings(raw datatypes.JSON) Settings {
	out := DefaultSettings()
	if len(raw) == 0 {
		return out
	}

	var parsed Settings
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return out
	}

	if tz := strings.TrimSpace(parsed.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			out.Timezone = tz
		}
	}
	for key, day := range parsed.BusinessHours {
		key = strings.ToLower(strings.TrimSpace(key))
		if _, ok := out.BusinessHours[key]; !ok {
			continue
		}
		if day.Closed {
			out.BusinessHours[key] = DayHours{Closed: true}
			continue
		}
		if _, ok := parseClock(day.Open); !ok {
			continue
		}
		if _, ok := parseClock(day.Close); !ok {
			continue
		}
		out.BusinessHours[key] = day
	}
	if parsed.Appointments.SlotMinutes > 0 {
		out.Appointments.SlotMinutes = parsed.Appointments.SlotMinutes
	}
	if parsed.Appointments.BufferMinutes > 0 {
		out.Appointments.BufferMinutes = parsed.Appointments.BufferMinutes
	}
	if parsed.Appointments.MaxDaysAhead > 0 {
		out.Appointments.MaxDaysAhead = parsed.Appointments.MaxDaysAhead
	}
	out.Appointments.Enabled = parsed.Appointments.Enabled
	if len(parsed.RequiredFields) > 0 {
		out.RequiredFields = parsed.RequiredFields
	}
	return out
}

// EncodeSettings serializes typed settings back into the JSON column form.
func EncodeSettings(s Settings) (datatypes.JSON, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// Location resolves the tenant timezone, falling back to UTC.
func (s Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HoursFor returns the opening window for a weekday in minutes since
// midnight. ok is false when the business is closed that day.
func (s Settings) HoursFor(day time.Weekday) (openMin, closeMin int, ok bool) {
	hours, found := s.BusinessHours[weekdayKeys[int(day)]]
	if !found || hours.Closed {
		return 0, 0, false
	}
	open, okOpen := parseClock(hours.Open)
	close_, okClose := parseClock(hours.Close)
	if !okOpen || !okClose || close_ <= open {
		return 0, 0, false
	}
	return open, close_, true
}

// WeeklyTable renders the business hours as a compact human-readable table
// for prompt context.
func (s Settings) WeeklyTable() string {
	var b strings.Builder
	for i := 1; i <= 7; i++ {
		day := time.Weekday(i % 7)
		key := weekdayKeys[int(day)]
		hours := s.BusinessHours[key]
		label := strings.ToUpper(key[:1]) + key[1:]
		if hours.Closed {
			fmt.Fprintf(&b, "%s: closed\n", label)
		} else {
			fmt.Fprintf(&b, "%s: %s-%s\n", label, hours.Open, hours.Close)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func parseClock(v string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
