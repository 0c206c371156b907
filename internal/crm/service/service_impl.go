package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/chatlyhq/chatly/internal/clock"
	crmdomain "github.com/chatlyhq/chatly/internal/crm/domain"
	"github.com/chatlyhq/chatly/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock

	clientRepo   repository.Repository[crmdomain.Client]
	orderRepo    repository.Repository[crmdomain.Order]
	eventRepo    repository.Repository[crmdomain.CalendarEvent]
	questionRepo repository.Repository[crmdomain.Question]
	taskRepo     repository.Repository[crmdomain.Task]

	taskSync *CalendarTaskSync
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	TaskSync *CalendarTaskSync
}

func NewService(p ServiceParam) crmdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("crm.service"),

		genID: p.GenID,
		clock: p.Clock,

		clientRepo:   repository.ProvideStore[crmdomain.Client](p.DB),
		orderRepo:    repository.ProvideStore[crmdomain.Order](p.DB),
		eventRepo:    repository.ProvideStore[crmdomain.CalendarEvent](p.DB),
		questionRepo: repository.ProvideStore[crmdomain.Question](p.DB),
		taskRepo:     repository.ProvideStore[crmdomain.Task](p.DB),

		taskSync: p.TaskSync,
	}
}

// ResolveClient implements domain.Service. Phone is the primary identity;
// the chat-linked id catches customers who never shared one.
func (s *Service) ResolveClient(ctx context.Context, companyID snowflake.ID, ref crmdomain.ClientRef) (*crmdomain.Client, error) {
	if ref.Phone != "" {
		existing, err := s.clientRepo.FindOne(ctx, &crmdomain.Client{
			CompanyID: companyID,
			Phone:     ref.Phone,
		})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	if ref.FallbackClientID != 0 {
		existing, err := s.clientRepo.FindOne(ctx, &crmdomain.Client{
			ID:        ref.FallbackClientID,
			CompanyID: companyID,
		})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := s.clock.Now()
	client := &crmdomain.Client{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		Name:      ref.Name,
		Phone:     ref.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) CreateOrder(ctx context.Context, req crmdomain.CreateOrderRequest) (*crmdomain.Order, error) {
	if req.ServiceName == "" {
		return nil, crmdomain.ErrMissingRequiredFields
	}

	client, err := s.ResolveClient(ctx, req.CompanyID, req.Client)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &crmdomain.Order{
		ID:          s.genID.Generate(),
		CompanyID:   req.CompanyID,
		ClientID:    client.ID,
		ServiceName: req.ServiceName,
		Address:     req.Address,
		Comment:     req.Comment,
		Status:      crmdomain.OrderStatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Appointment != nil {
		order.Status = crmdomain.OrderStatusAppointments
		order.LinkAppointment(req.Appointment)
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	// Complete the soft link from the event side.
	if req.Appointment != nil {
		req.Appointment.LinkOrder(order.ID)
		if err := s.eventRepo.Update(ctx, req.Appointment.ID.String(), map[string]any{
			"metadata":   req.Appointment.Metadata,
			"updated_at": now,
		}); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *Service) DeleteOrder(ctx context.Context, companyID, orderID snowflake.ID) error {
	order, err := s.orderRepo.FindOne(ctx, &crmdomain.Order{ID: orderID, CompanyID: companyID})
	if err != nil {
		return err
	}
	if order == nil {
		return crmdomain.ErrOrderNotFound
	}

	if eventID, ok := order.LinkedEventID(); ok {
		event, err := s.eventRepo.FindOne(ctx, &crmdomain.CalendarEvent{ID: eventID, CompanyID: companyID})
		if err != nil {
			return err
		}
		if event != nil {
			event.UnlinkOrder()
			if err := s.eventRepo.Update(ctx, event.ID.String(), map[string]any{
				"metadata":   event.Metadata,
				"updated_at": s.clock.Now(),
			}); err != nil {
				return err
			}
		}
	}
	return s.orderRepo.Delete(ctx, orderID.String())
}

func (s *Service) DeleteEvent(ctx context.Context, companyID, eventID snowflake.ID) error {
	event, err := s.eventRepo.FindOne(ctx, &crmdomain.CalendarEvent{ID: eventID, CompanyID: companyID})
	if err != nil {
		return err
	}
	if event == nil {
		return crmdomain.ErrEventNotFound
	}

	if orderID, ok := event.LinkedOrderID(); ok {
		order, err := s.orderRepo.FindOne(ctx, &crmdomain.Order{ID: orderID, CompanyID: companyID})
		if err != nil {
			return err
		}
		if order != nil {
			order.UnlinkAppointment()
			if err := s.orderRepo.Update(ctx, order.ID.String(), map[string]any{
				"metadata":   order.Metadata,
				"updated_at": s.clock.Now(),
			}); err != nil {
				return err
			}
		}
	}
	return s.eventRepo.Delete(ctx, eventID.String())
}

func (s *Service) UpdateEventStatus(ctx context.Context, companyID, eventID snowflake.ID, status crmdomain.EventStatus) (*crmdomain.CalendarEvent, error) {
	event, err := s.eventRepo.FindOne(ctx, &crmdomain.CalendarEvent{ID: eventID, CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, crmdomain.ErrEventNotFound
	}

	now := s.clock.Now()
	if err := s.eventRepo.Update(ctx, event.ID.String(), map[string]any{
		"status":     status,
		"updated_at": now,
	}); err != nil {
		return nil, err
	}
	event.Status = status
	event.UpdatedAt = now

	if err := s.taskSync.Propagate(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) CreateTask(ctx context.Context, task *crmdomain.Task) (*crmdomain.Task, error) {
	now := s.clock.Now()
	task.ID = s.genID.Generate()
	if task.Status == "" {
		task.Status = crmdomain.TaskStatusOpen
	}
	if task.Board == "" {
		task.Board = string(crmdomain.TaskStatusOpen)
	}
	task.CreatedAt = now
	task.UpdatedAt = now
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) CreateQuestion(ctx context.Context, question *crmdomain.Question) (*crmdomain.Question, error) {
	now := s.clock.Now()
	question.ID = s.genID.Generate()
	if question.Status == "" {
		question.Status = crmdomain.QuestionStatusOpen
	}
	if question.Board == "" {
		question.Board = string(crmdomain.QuestionStatusOpen)
	}
	question.CreatedAt = now
	question.UpdatedAt = now
	if err := s.questionRepo.Create(ctx, question); err != nil {
		return nil, err
	}
	return question, nil
}
