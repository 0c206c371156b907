package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	ListPublic(ctx context.Context) ([]Plan, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Plan, error)
	GetByCode(ctx context.Context, code string) (*Plan, error)
	// DefaultPlan resolves the plan new subscriptions start on: the configured
	// default code when set, else the first active non-enterprise plan by sort
	// order.
	DefaultPlan(ctx context.Context) (*Plan, error)
}

var (
	ErrPlanNotFound  = errors.New("plan_not_found")
	ErrNoDefaultPlan = errors.New("no_default_plan")
)
