package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Client struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"index;index:ix_client_phone" json:"company_id"`

	Name    string `gorm:"size:255" json:"name"`
	Phone   string `gorm:"size:64;index:ix_client_phone" json:"phone"`
	Email   string `gorm:"size:255" json:"email,omitempty"`
	Address string `gorm:"size:512" json:"address,omitempty"`
	Notes   string `gorm:"type:text" json:"notes,omitempty"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Client) TableName() string { return "company_clients" }

type OrderStatus string

const (
	OrderStatusNew          OrderStatus = "new"
	OrderStatusAppointments OrderStatus = "appointments"
	OrderStatusInProgress   OrderStatus = "in_progress"
	OrderStatusDone         OrderStatus = "done"
	OrderStatusCanceled     OrderStatus = "canceled"
)

type Order struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"index" json:"company_id"`
	ClientID  snowflake.ID `gorm:"index" json:"client_id"`

	ServiceName string      `gorm:"size:255" json:"service_name"`
	Address     string      `gorm:"size:512" json:"address,omitempty"`
	Comment     string      `gorm:"type:text" json:"comment,omitempty"`
	Status      OrderStatus `gorm:"size:32;default:new" json:"status"`

	// Metadata may carry a soft link to a calendar event under "appointment".
	// The link is maintained by the service layer, never by the database.
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Order) TableName() string { return "company_client_orders" }

type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCanceled  EventStatus = "canceled"
)

// Blocking reports whether the event occupies its slot for collision checks.
func (s EventStatus) Blocking() bool {
	return s == EventStatusScheduled || s == EventStatusConfirmed
}

type CalendarEvent struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"index;index:ix_event_window" json:"company_id"`
	ClientID  snowflake.ID `gorm:"index" json:"client_id"`

	Title   string `gorm:"size:255" json:"title"`
	Address string `gorm:"size:512" json:"address,omitempty"`

	StartsAt time.Time `gorm:"index:ix_event_window" json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`

	Status EventStatus `gorm:"size:32;default:scheduled" json:"status"`

	// Metadata may carry the soft link back to the originating order under
	// "order_id".
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CalendarEvent) TableName() string { return "company_calendar_events" }

type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCanceled   TaskStatus = "canceled"
)

type Task struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"index" json:"company_id"`
	ClientID  snowflake.ID `gorm:"index" json:"client_id,omitempty"`

	CalendarEventID  *snowflake.ID `gorm:"index" json:"calendar_event_id,omitempty"`
	SyncWithCalendar bool          `gorm:"default:false" json:"sync_with_calendar"`

	Title       string     `gorm:"size:255" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Status      TaskStatus `gorm:"size:32;default:open" json:"status"`
	Board       string     `gorm:"size:64;default:open" json:"board"`

	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Task) TableName() string { return "company_client_tasks" }

type QuestionStatus string

const (
	QuestionStatusOpen     QuestionStatus = "open"
	QuestionStatusAnswered QuestionStatus = "answered"
)

type Question struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"index" json:"company_id"`
	ClientID  snowflake.ID `gorm:"index" json:"client_id,omitempty"`
	ChatID    snowflake.ID `gorm:"index" json:"chat_id,omitempty"`

	Text   string         `gorm:"type:text" json:"text"`
	Status QuestionStatus `gorm:"size:32;default:open" json:"status"`
	Board  string         `gorm:"size:64;default:open" json:"board"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string { return "company_client_questions" }
