package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	crmdomain "github.com/chatlyhq/chatly/internal/crm/domain"
	"github.com/chatlyhq/chatly/pkg/db/option"
)

const (
	minAppointmentMinutes = 15
	maxAppointmentMinutes = 720
)

// CreateAppointment implements domain.Service.
func (s *Service) CreateAppointment(ctx context.Context, req crmdomain.CreateAppointmentRequest) (*crmdomain.CalendarEvent, error) {
	minutes := int(req.Duration / time.Minute)
	if req.StartsAt.IsZero() || minutes < minAppointmentMinutes || minutes > maxAppointmentMinutes {
		return nil, crmdomain.ErrInvalidSchedule
	}

	startsAt := req.StartsAt.UTC()
	endsAt := startsAt.Add(req.Duration)

	if !withinBusinessHours(req.Settings, startsAt, endsAt) {
		return nil, crmdomain.ErrOutsideBusinessHours
	}

	free, err := s.slotFree(ctx, req.CompanyID, startsAt, endsAt, req.Settings.Appointments.BufferMinutes)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, crmdomain.ErrSlotOccupied
	}

	client, err := s.ResolveClient(ctx, req.CompanyID, req.Client)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	event := &crmdomain.CalendarEvent{
		ID:        s.genID.Generate(),
		CompanyID: req.CompanyID,
		ClientID:  client.ID,
		Title:     req.Title,
		Address:   req.Address,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		Status:    crmdomain.EventStatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// withinBusinessHours checks that [start, end) fits inside the opening window
// of start's weekday, in the tenant's local time.
func withinBusinessHours(settings companydomain.Settings, start, end time.Time) bool {
	loc := settings.Location()
	localStart := start.In(loc)

	openMin, closeMin, ok := settings.HoursFor(localStart.Weekday())
	if !ok {
		return false
	}

	// Minutes past closing (including past midnight) fail the closeMin bound.
	startMin := localStart.Hour()*60 + localStart.Minute()
	endMin := startMin + int(end.Sub(start)/time.Minute)
	return startMin >= openMin && endMin <= closeMin
}

// slotFree runs the half-open overlap test against blocking events, padded by
// the optional buffer.
func (s *Service) slotFree(ctx context.Context, companyID snowflake.ID, start, end time.Time, bufferMinutes int) (bool, error) {
	buffer := time.Duration(bufferMinutes) * time.Minute

	var count int64
	err := s.db.WithContext(ctx).
		Model(&crmdomain.CalendarEvent{}).
		Where("company_id = ?", companyID).
		Where("status IN ?", []crmdomain.EventStatus{crmdomain.EventStatusScheduled, crmdomain.EventStatusConfirmed}).
		Where("starts_at < ? AND ends_at > ?", end.Add(buffer), start.Add(-buffer)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (s *Service) UpcomingBookings(ctx context.Context, companyID snowflake.ID, from time.Time, limit int) ([]crmdomain.CalendarEvent, error) {
	opts := []option.QueryOption{
		option.WithWhere("status IN ?", []crmdomain.EventStatus{crmdomain.EventStatusScheduled, crmdomain.EventStatusConfirmed}),
		option.WithWhere("starts_at >= ?", from),
		option.WithOrder("starts_at ASC"),
	}
	if limit > 0 {
		opts = append(opts, option.WithLimit(limit))
	}
	rows, err := s.eventRepo.Find(ctx, &crmdomain.CalendarEvent{CompanyID: companyID}, opts...)
	if err != nil {
		return nil, err
	}
	events := make([]crmdomain.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, *row)
	}
	return events, nil
}

// NextAvailableSlots implements domain.Service. Slots are generated on the
// tenant's slot grid starting at each day's opening time and tested against
// the blocking events loaded for the whole lookahead window in one query.
func (s *Service) NextAvailableSlots(ctx context.Context, companyID snowflake.ID, settings companydomain.Settings, from time.Time, n int) ([]time.Time, error) {
	if n <= 0 || !settings.Appointments.Enabled {
		return nil, nil
	}

	slotMinutes := settings.Appointments.SlotMinutes
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	daysAhead := settings.Appointments.MaxDaysAhead
	if daysAhead <= 0 {
		daysAhead = 14
	}
	slot := time.Duration(slotMinutes) * time.Minute
	buffer := time.Duration(settings.Appointments.BufferMinutes) * time.Minute

	loc := settings.Location()
	windowEnd := from.AddDate(0, 0, daysAhead)

	booked, err := s.UpcomingBookings(ctx, companyID, from.Add(-maxAppointmentMinutes*time.Minute), 0)
	if err != nil {
		return nil, err
	}

	slots := make([]time.Time, 0, n)
	localFrom := from.In(loc)
	for day := 0; day <= daysAhead && len(slots) < n; day++ {
		date := localFrom.AddDate(0, 0, day)
		openMin, closeMin, ok := settings.HoursFor(date.Weekday())
		if !ok {
			continue
		}
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
		for startMin := openMin; startMin+slotMinutes <= closeMin && len(slots) < n; startMin += slotMinutes {
			start := dayStart.Add(time.Duration(startMin) * time.Minute)
			if start.Before(localFrom) || start.After(windowEnd) {
				continue
			}
			end := start.Add(slot)
			if overlapsAny(booked, start, end, buffer) {
				continue
			}
			slots = append(slots, start.UTC())
		}
	}
	return slots, nil
}

func overlapsAny(events []crmdomain.CalendarEvent, start, end time.Time, buffer time.Duration) bool {
	for _, event := range events {
		if event.StartsAt.Before(end.Add(buffer)) && event.EndsAt.After(start.Add(-buffer)) {
			return true
		}
	}
	return false
}
