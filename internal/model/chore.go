package model

import "time"

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Chore is a single dated task owned by a team. Rows with IsTemplate set
// describe a recurrence rule; concrete occurrences reference their template
// via ParentChoreID.
type Chore struct {
	ID          int64      `json:"id"`
	TeamID      int64      `json:"team_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Color       string     `json:"color"`
	Status      string     `json:"status"`
	AssignedTo  *int64     `json:"assigned_to"`
	CreatedBy   int64      `json:"created_by"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     time.Time  `json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`
	CompletedBy *int64     `json:"completed_by"`

	IsRecurring          bool       `json:"is_recurring"`
	RecurrencePattern    *string    `json:"recurrence_pattern"`
	RecurrenceInterval   *int       `json:"recurrence_interval"`
	RecurrenceDaysOfWeek *string    `json:"recurrence_days_of_week"`
	RecurrenceDayOfMonth *int       `json:"recurrence_day_of_month"`
	RecurrenceEndDate    *time.Time `json:"recurrence_end_date"`
	IsTemplate           bool       `json:"is_template"`
	ParentChoreID        *int64     `json:"parent_chore_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined from users for listings and the calendar view.
	AssignedToName   string `json:"assigned_to_name,omitempty"`
	AssignedToAvatar string `json:"assigned_to_avatar,omitempty"`
	CreatedByName    string `json:"created_by_name,omitempty"`
}

// ChoreCompletion is an append-only history row recorded when a chore is
// completed. It is never updated or deleted.
type ChoreCompletion struct {
	ID             int64     `json:"id"`
	ChoreID        int64     `json:"chore_id"`
	CompletedBy    *int64    `json:"completed_by"`
	CompletionDate time.Time `json:"completion_date"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`

	CompletedByName string `json:"completed_by_name,omitempty"`
}

// ChorePatch lists the fields a partial update may touch. Anything else in
// the request body is dropped, not an error.
type ChorePatch struct {
	Title                Optional[string]    `json:"title"`
	Description          Optional[string]    `json:"description"`
	Priority             Optional[string]    `json:"priority"`
	Color                Optional[string]    `json:"color"`
	AssignedTo           Optional[int64]     `json:"assigned_to"`
	StartDate            Optional[time.Time] `json:"start_date"`
	DueDate              Optional[time.Time] `json:"due_date"`
	Status               Optional[string]    `json:"status"`
	RecurrencePattern    Optional[string]    `json:"recurrence_pattern"`
	RecurrenceInterval   Optional[int]       `json:"recurrence_interval"`
	RecurrenceDaysOfWeek Optional[string]    `json:"recurrence_days_of_week"`
	RecurrenceDayOfMonth Optional[int]       `json:"recurrence_day_of_month"`
	RecurrenceEndDate    Optional[time.Time] `json:"recurrence_end_date"`
}

// ChoreFilter selects chores in ListByTeam. Nil fields apply no constraint;
// a caller must be able to distinguish "not supplied" from a zero value.
type ChoreFilter struct {
	AssignedTo *int64
	Status     *string
	Priority   *string
	DueAfter   *time.Time
	DueBefore  *time.Time
	IsTemplate *bool
}
