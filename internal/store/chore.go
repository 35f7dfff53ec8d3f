package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"choreboard/internal/model"
)

// Completion outcomes the handler must distinguish from internal failures.
var (
	ErrChoreNotFound  = errors.New("chore not found")
	ErrChoreNotActive = errors.New("chore is not active")
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

const choreCols = `c.id, c.team_id, c.title, c.description, c.priority, c.color, c.status,
	c.assigned_to, c.created_by, c.start_date, c.due_date, c.completed_at, c.completed_by,
	c.is_recurring, c.recurrence_pattern, c.recurrence_interval, c.recurrence_days_of_week,
	c.recurrence_day_of_month, c.recurrence_end_date, c.is_template, c.parent_chore_id,
	c.created_at, c.updated_at`

const choreSelect = `SELECT ` + choreCols + `,
	COALESCE(assignee.name, ''), COALESCE(assignee.avatar_url, ''), COALESCE(creator.name, '')
	FROM chores c
	LEFT JOIN users assignee ON c.assigned_to = assignee.id
	LEFT JOIN users creator ON c.created_by = creator.id`

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var assignedTo, completedBy, parentID sql.NullInt64
	var startDate, completedAt, recurEnd sql.NullTime
	var recurPattern, recurDays sql.NullString
	var recurInterval, recurDayOfMonth sql.NullInt64
	var isRecurring, isTemplate int

	err := scanner.Scan(
		&c.ID, &c.TeamID, &c.Title, &c.Description, &c.Priority, &c.Color, &c.Status,
		&assignedTo, &c.CreatedBy, &startDate, &c.DueDate, &completedAt, &completedBy,
		&isRecurring, &recurPattern, &recurInterval, &recurDays,
		&recurDayOfMonth, &recurEnd, &isTemplate, &parentID,
		&c.CreatedAt, &c.UpdatedAt,
		&c.AssignedToName, &c.AssignedToAvatar, &c.CreatedByName,
	)
	if err != nil {
		return nil, err
	}

	c.IsRecurring = isRecurring != 0
	c.IsTemplate = isTemplate != 0
	if assignedTo.Valid {
		c.AssignedTo = &assignedTo.Int64
	}
	if completedBy.Valid {
		c.CompletedBy = &completedBy.Int64
	}
	if parentID.Valid {
		c.ParentChoreID = &parentID.Int64
	}
	if startDate.Valid {
		c.StartDate = &startDate.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	if recurEnd.Valid {
		c.RecurrenceEndDate = &recurEnd.Time
	}
	if recurPattern.Valid {
		c.RecurrencePattern = &recurPattern.String
	}
	if recurDays.Valid {
		c.RecurrenceDaysOfWeek = &recurDays.String
	}
	if recurInterval.Valid {
		n := int(recurInterval.Int64)
		c.RecurrenceInterval = &n
	}
	if recurDayOfMonth.Valid {
		n := int(recurDayOfMonth.Int64)
		c.RecurrenceDayOfMonth = &n
	}
	return &c, nil
}

func (s *ChoreStore) queryChores(query string, args ...any) ([]model.Chore, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullIntFrom(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

// Create inserts a chore (or a recurrence template) and returns the stored row.
func (s *ChoreStore) Create(c model.Chore) (*model.Chore, error) {
	result, err := s.db.Exec(
		`INSERT INTO chores (
			team_id, title, description, priority, color, status, assigned_to, created_by,
			start_date, due_date, is_recurring, recurrence_pattern, recurrence_interval,
			recurrence_days_of_week, recurrence_day_of_month, recurrence_end_date,
			is_template, parent_chore_id
		) VALUES (?, ?, ?, ?, ?, 'active', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TeamID, c.Title, c.Description, c.Priority, c.Color,
		nullInt64(c.AssignedTo), c.CreatedBy,
		nullTime(c.StartDate), c.DueDate.UTC(),
		c.IsRecurring, nullString(c.RecurrencePattern), nullIntFrom(c.RecurrenceInterval),
		nullString(c.RecurrenceDaysOfWeek), nullIntFrom(c.RecurrenceDayOfMonth), nullTime(c.RecurrenceEndDate),
		c.IsTemplate, nullInt64(c.ParentChoreID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) GetByID(id int64) (*model.Chore, error) {
	row := s.db.QueryRow(choreSelect+` WHERE c.id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// priorityRank orders text priorities for sorting: high > medium > low.
const priorityRank = `CASE c.priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

// ListByTeam returns the team's chores matching the filter, soonest due first,
// ties broken by priority then recency. Nil filter fields apply no constraint.
func (s *ChoreStore) ListByTeam(teamID int64, f model.ChoreFilter) ([]model.Chore, error) {
	where := []string{"c.team_id = ?"}
	args := []any{teamID}

	if f.AssignedTo != nil {
		where = append(where, "c.assigned_to = ?")
		args = append(args, *f.AssignedTo)
	}
	if f.Status != nil {
		where = append(where, "c.status = ?")
		args = append(args, *f.Status)
	}
	if f.Priority != nil {
		where = append(where, "c.priority = ?")
		args = append(args, *f.Priority)
	}
	if f.DueAfter != nil {
		where = append(where, "c.due_date >= ?")
		args = append(args, f.DueAfter.UTC())
	}
	if f.DueBefore != nil {
		where = append(where, "c.due_date <= ?")
		args = append(args, f.DueBefore.UTC())
	}
	if f.IsTemplate != nil {
		where = append(where, "c.is_template = ?")
		args = append(args, *f.IsTemplate)
	}

	query := choreSelect + ` WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY c.due_date ASC, ` + priorityRank + ` DESC, c.created_at DESC`
	return s.queryChores(query, args...)
}

// CalendarRange returns the team's dated chores inside [start, end] inclusive
// for calendar rendering: never templates, never archived, assignee joined in.
func (s *ChoreStore) CalendarRange(teamID int64, start, end time.Time) ([]model.Chore, error) {
	query := choreSelect + `
		WHERE c.team_id = ?
		  AND c.is_template = 0
		  AND c.due_date >= ?
		  AND c.due_date <= ?
		  AND c.status != 'archived'
		ORDER BY c.due_date ASC`
	return s.queryChores(query, teamID, start.UTC(), end.UTC())
}

// ListActiveRecurringTemplates returns active recurrence templates, the input
// for any future instance generator. teamID of nil means all teams.
func (s *ChoreStore) ListActiveRecurringTemplates(teamID *int64) ([]model.Chore, error) {
	query := choreSelect + ` WHERE c.is_recurring = 1 AND c.is_template = 1 AND c.status = 'active'`
	var args []any
	if teamID != nil {
		query += ` AND c.team_id = ?`
		args = append(args, *teamID)
	}
	return s.queryChores(query, args...)
}

// ListInstancesByParent returns the concrete occurrences spawned from a
// template, newest due date first.
func (s *ChoreStore) ListInstancesByParent(parentID int64) ([]model.Chore, error) {
	query := choreSelect + ` WHERE c.parent_chore_id = ? ORDER BY c.due_date DESC`
	return s.queryChores(query, parentID)
}

// Update applies the set fields of the patch and stamps updated_at. An empty
// patch is a no-op returning the current row.
func (s *ChoreStore) Update(id int64, patch model.ChorePatch) (*model.Chore, error) {
	var sets []string
	var args []any

	add := func(col string, o bool, v any) {
		if o {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
	}

	add("title", patch.Title.Set && patch.Title.Valid, patch.Title.Value)
	add("description", patch.Description.Set && patch.Description.Valid, patch.Description.Value)
	add("priority", patch.Priority.Set && patch.Priority.Valid, patch.Priority.Value)
	add("color", patch.Color.Set && patch.Color.Valid, patch.Color.Value)
	add("status", patch.Status.Set && patch.Status.Valid, patch.Status.Value)
	if patch.DueDate.Set && patch.DueDate.Valid {
		add("due_date", true, patch.DueDate.Value.UTC())
	}

	// Nullable columns: explicit null clears the value.
	if patch.AssignedTo.Set {
		if patch.AssignedTo.Valid {
			add("assigned_to", true, patch.AssignedTo.Value)
		} else {
			add("assigned_to", true, nil)
		}
	}
	if patch.StartDate.Set {
		if patch.StartDate.Valid {
			add("start_date", true, patch.StartDate.Value.UTC())
		} else {
			add("start_date", true, nil)
		}
	}
	if patch.RecurrencePattern.Set {
		if patch.RecurrencePattern.Valid {
			add("recurrence_pattern", true, patch.RecurrencePattern.Value)
		} else {
			add("recurrence_pattern", true, nil)
		}
	}
	if patch.RecurrenceInterval.Set {
		if patch.RecurrenceInterval.Valid {
			add("recurrence_interval", true, patch.RecurrenceInterval.Value)
		} else {
			add("recurrence_interval", true, nil)
		}
	}
	if patch.RecurrenceDaysOfWeek.Set {
		if patch.RecurrenceDaysOfWeek.Valid {
			add("recurrence_days_of_week", true, patch.RecurrenceDaysOfWeek.Value)
		} else {
			add("recurrence_days_of_week", true, nil)
		}
	}
	if patch.RecurrenceDayOfMonth.Set {
		if patch.RecurrenceDayOfMonth.Valid {
			add("recurrence_day_of_month", true, patch.RecurrenceDayOfMonth.Value)
		} else {
			add("recurrence_day_of_month", true, nil)
		}
	}
	if patch.RecurrenceEndDate.Set {
		if patch.RecurrenceEndDate.Valid {
			add("recurrence_end_date", true, patch.RecurrenceEndDate.Value.UTC())
		} else {
			add("recurrence_end_date", true, nil)
		}
	}

	if len(sets) == 0 {
		return s.GetByID(id)
	}

	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, id)

	_, err := s.db.Exec(`UPDATE chores SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChoreStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

// Complete transitions an active chore to completed and appends exactly one
// history row, in a single transaction. The update is conditional on the
// current status, so a concurrent duplicate attempt matches no row and
// returns ErrChoreNotActive instead of inserting a second history entry.
// On any failure the whole transaction rolls back: the chore is never
// completed without its history row, and vice versa.
func (s *ChoreStore) Complete(choreID, userID int64, notes string) (*model.Chore, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE chores
		 SET status = 'completed', completed_at = datetime('now'), completed_by = ?, updated_at = datetime('now')
		 WHERE id = ? AND status = 'active'`,
		userID, choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("complete chore: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var status string
		err := tx.QueryRow(`SELECT status FROM chores WHERE id = ?`, choreID).Scan(&status)
		if err == sql.ErrNoRows {
			return nil, ErrChoreNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("check chore status: %w", err)
		}
		return nil, ErrChoreNotActive
	}

	var completedAt time.Time
	if err := tx.QueryRow(`SELECT completed_at FROM chores WHERE id = ?`, choreID).Scan(&completedAt); err != nil {
		return nil, fmt.Errorf("read completed_at: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO chore_completions (chore_id, completed_by, completion_date, notes) VALUES (?, ?, ?, ?)`,
		choreID, userID, completedAt, notes,
	); err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(choreID)
}

// ListCompletions returns a chore's completion history, most recent first,
// with completer names joined in.
func (s *ChoreStore) ListCompletions(choreID int64) ([]model.ChoreCompletion, error) {
	rows, err := s.db.Query(
		`SELECT cc.id, cc.chore_id, cc.completed_by, cc.completion_date, cc.notes, cc.created_at,
		        COALESCE(u.name, '')
		 FROM chore_completions cc
		 LEFT JOIN users u ON cc.completed_by = u.id
		 WHERE cc.chore_id = ?
		 ORDER BY cc.completion_date DESC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.ChoreCompletion
	for rows.Next() {
		var c model.ChoreCompletion
		var completedBy sql.NullInt64
		if err := rows.Scan(&c.ID, &c.ChoreID, &completedBy, &c.CompletionDate, &c.Notes, &c.CreatedAt, &c.CompletedByName); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		if completedBy.Valid {
			c.CompletedBy = &completedBy.Int64
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}
