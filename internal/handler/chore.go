package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"choreboard/internal/auth"
	"choreboard/internal/model"
	"choreboard/internal/store"
	"choreboard/internal/websocket"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultChoreColor = "#3B82F6"

func validPriority(p string) bool {
	return p == model.PriorityLow || p == model.PriorityMedium || p == model.PriorityHigh
}

func validStatus(s string) bool {
	return s == model.StatusActive || s == model.StatusCompleted || s == model.StatusArchived
}

func validRecurrencePattern(p string) bool {
	switch p {
	case "daily", "weekly", "monthly", "custom":
		return true
	}
	return false
}

type ChoreHandler struct {
	chores *store.ChoreStore
	teams  *store.TeamStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, ts *store.TeamStore, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: cs, teams: ts, hub: hub, logger: logger}
}

func (h *ChoreHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// gateTeam resolves a team by id and enforces membership: 404 for a missing
// team, 403 for a non-member. Reports whether the caller may proceed.
func (h *ChoreHandler) gateTeam(w http.ResponseWriter, r *http.Request, teamID int64) bool {
	team, err := h.teams.GetByID(teamID)
	if err != nil {
		h.logger.Error("get team", "error", err)
		fail(w, http.StatusInternalServerError, "failed to load team")
		return false
	}
	if team == nil {
		fail(w, http.StatusNotFound, "team not found")
		return false
	}

	ok, err := h.teams.IsMember(teamID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("check membership", "error", err)
		fail(w, http.StatusInternalServerError, "failed to check membership")
		return false
	}
	if !ok {
		fail(w, http.StatusForbidden, "access denied: you are not a member of this team")
		return false
	}
	return true
}

// gateChore loads a chore and enforces membership of its owning team.
// Returns nil when the response has already been written.
func (h *ChoreHandler) gateChore(w http.ResponseWriter, r *http.Request) *model.Chore {
	id, err := parseIDParam(r, "id")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid chore id")
		return nil
	}

	chore, err := h.chores.GetByID(id)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		fail(w, http.StatusInternalServerError, "failed to load chore")
		return nil
	}
	if chore == nil {
		fail(w, http.StatusNotFound, "chore not found")
		return nil
	}

	ok, err := h.teams.IsMember(chore.TeamID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("check membership", "error", err)
		fail(w, http.StatusInternalServerError, "failed to check membership")
		return nil
	}
	if !ok {
		fail(w, http.StatusForbidden, "access denied")
		return nil
	}
	return chore
}

// List returns a team's dated chores, filtered by query parameters. Absent
// parameters apply no constraint. Templates never appear here.
func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID, err := parseIDParam(r, "teamId")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if !h.gateTeam(w, r, teamID) {
		return
	}

	q := r.URL.Query()
	var filter model.ChoreFilter

	if v := q.Get("assigned_to"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid assigned_to")
			return
		}
		filter.AssignedTo = &id
	}
	if v := q.Get("status"); v != "" {
		if !validStatus(v) {
			fail(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = &v
	}
	if v := q.Get("priority"); v != "" {
		if !validPriority(v) {
			fail(w, http.StatusBadRequest, "invalid priority")
			return
		}
		filter.Priority = &v
	}
	if v := q.Get("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		filter.DueAfter = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		filter.DueBefore = &t
	}
	isTemplate := false
	filter.IsTemplate = &isTemplate

	chores, err := h.chores.ListByTeam(teamID, filter)
	if err != nil {
		h.logger.Error("list chores", "error", err)
		fail(w, http.StatusInternalServerError, "failed to list chores")
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	respond(w, http.StatusOK, map[string]any{"chores": chores}, "")
}

type choreRequest struct {
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Priority             string     `json:"priority"`
	Color                string     `json:"color"`
	AssignedTo           *int64     `json:"assigned_to"`
	StartDate            *time.Time `json:"start_date"`
	DueDate              *time.Time `json:"due_date"`
	IsRecurring          bool       `json:"is_recurring"`
	RecurrencePattern    *string    `json:"recurrence_pattern"`
	RecurrenceInterval   *int       `json:"recurrence_interval"`
	RecurrenceDaysOfWeek *string    `json:"recurrence_days_of_week"`
	RecurrenceDayOfMonth *int       `json:"recurrence_day_of_month"`
	RecurrenceEndDate    *time.Time `json:"recurrence_end_date"`
	IsTemplate           bool       `json:"is_template"`
	ParentChoreID        *int64     `json:"parent_chore_id"`
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	teamID, err := parseIDParam(r, "teamId")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if !h.gateTeam(w, r, teamID) {
		return
	}

	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.DueDate == nil {
		fail(w, http.StatusBadRequest, "title and due date are required")
		return
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !validPriority(req.Priority) {
		fail(w, http.StatusBadRequest, "priority must be low, medium, or high")
		return
	}
	if req.Color == "" {
		req.Color = defaultChoreColor
	}
	if !hexColorRegexp.MatchString(req.Color) {
		fail(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}
	if req.IsRecurring {
		if req.RecurrencePattern == nil {
			fail(w, http.StatusBadRequest, "recurrence pattern is required for recurring chores")
			return
		}
		if !validRecurrencePattern(*req.RecurrencePattern) {
			fail(w, http.StatusBadRequest, "recurrence pattern must be daily, weekly, monthly, or custom")
			return
		}
	}
	if req.AssignedTo != nil {
		ok, err := h.teams.IsMember(teamID, *req.AssignedTo)
		if err != nil {
			h.logger.Error("check assignee", "error", err)
			fail(w, http.StatusInternalServerError, "failed to check assignee")
			return
		}
		if !ok {
			fail(w, http.StatusBadRequest, "assignee is not a member of this team")
			return
		}
	}

	chore, err := h.chores.Create(model.Chore{
		TeamID:               teamID,
		Title:                req.Title,
		Description:          req.Description,
		Priority:             req.Priority,
		Color:                req.Color,
		AssignedTo:           req.AssignedTo,
		CreatedBy:            auth.UserID(r.Context()),
		StartDate:            req.StartDate,
		DueDate:              *req.DueDate,
		IsRecurring:          req.IsRecurring,
		RecurrencePattern:    req.RecurrencePattern,
		RecurrenceInterval:   req.RecurrenceInterval,
		RecurrenceDaysOfWeek: req.RecurrenceDaysOfWeek,
		RecurrenceDayOfMonth: req.RecurrenceDayOfMonth,
		RecurrenceEndDate:    req.RecurrenceEndDate,
		IsTemplate:           req.IsTemplate,
		ParentChoreID:        req.ParentChoreID,
	})
	if err != nil {
		h.logger.Error("create chore", "error", err)
		fail(w, http.StatusInternalServerError, "failed to create chore")
		return
	}

	h.broadcast(websocket.NewMessage("chore", "created", chore.ID, teamID))
	respond(w, http.StatusCreated, map[string]any{"chore": chore}, "chore created successfully")
}

// Calendar returns the team's dated chores inside an inclusive due-date
// range, with assignee name and avatar joined in for direct rendering.
func (h *ChoreHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	teamID, err := parseIDParam(r, "teamId")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if !h.gateTeam(w, r, teamID) {
		return
	}

	q := r.URL.Query()
	startStr, endStr := q.Get("start_date"), q.Get("end_date")
	if startStr == "" || endStr == "" {
		fail(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	start, err := parseDate(startStr)
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	end, err := parseDate(endStr)
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid end_date")
		return
	}

	chores, err := h.chores.CalendarRange(teamID, start, end)
	if err != nil {
		h.logger.Error("calendar query", "error", err)
		fail(w, http.StatusInternalServerError, "failed to load calendar")
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	respond(w, http.StatusOK, map[string]any{"chores": chores}, "")
}

// Templates returns the team's active recurring templates. No generator
// materializes instances from them; this is the query a future scheduler
// would start from.
func (h *ChoreHandler) Templates(w http.ResponseWriter, r *http.Request) {
	teamID, err := parseIDParam(r, "teamId")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if !h.gateTeam(w, r, teamID) {
		return
	}

	templates, err := h.chores.ListActiveRecurringTemplates(&teamID)
	if err != nil {
		h.logger.Error("list templates", "error", err)
		fail(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []model.Chore{}
	}
	respond(w, http.StatusOK, map[string]any{"templates": templates}, "")
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	chore := h.gateChore(w, r)
	if chore == nil {
		return
	}
	respond(w, http.StatusOK, map[string]any{"chore": chore}, "")
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	chore := h.gateChore(w, r)
	if chore == nil {
		return
	}

	var patch model.ChorePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Required columns reject explicit null.
	for _, f := range []struct {
		name string
		set  bool
		ok   bool
	}{
		{"title", patch.Title.Set, patch.Title.Valid},
		{"due_date", patch.DueDate.Set, patch.DueDate.Valid},
		{"priority", patch.Priority.Set, patch.Priority.Valid},
		{"status", patch.Status.Set, patch.Status.Valid},
		{"color", patch.Color.Set, patch.Color.Valid},
		{"description", patch.Description.Set, patch.Description.Valid},
	} {
		if f.set && !f.ok {
			fail(w, http.StatusBadRequest, f.name+" cannot be null")
			return
		}
	}
	if patch.Title.Set && strings.TrimSpace(patch.Title.Value) == "" {
		fail(w, http.StatusBadRequest, "title cannot be empty")
		return
	}
	if patch.Priority.Set && !validPriority(patch.Priority.Value) {
		fail(w, http.StatusBadRequest, "priority must be low, medium, or high")
		return
	}
	if patch.Status.Set && !validStatus(patch.Status.Value) {
		fail(w, http.StatusBadRequest, "status must be active, completed, or archived")
		return
	}
	if patch.Color.Set && !hexColorRegexp.MatchString(patch.Color.Value) {
		fail(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}
	if patch.RecurrencePattern.Set && patch.RecurrencePattern.Valid && !validRecurrencePattern(patch.RecurrencePattern.Value) {
		fail(w, http.StatusBadRequest, "recurrence pattern must be daily, weekly, monthly, or custom")
		return
	}
	if patch.AssignedTo.Set && patch.AssignedTo.Valid {
		ok, err := h.teams.IsMember(chore.TeamID, patch.AssignedTo.Value)
		if err != nil {
			h.logger.Error("check assignee", "error", err)
			fail(w, http.StatusInternalServerError, "failed to check assignee")
			return
		}
		if !ok {
			fail(w, http.StatusBadRequest, "assignee is not a member of this team")
			return
		}
	}

	updated, err := h.chores.Update(chore.ID, patch)
	if err != nil {
		h.logger.Error("update chore", "error", err)
		fail(w, http.StatusInternalServerError, "failed to update chore")
		return
	}

	h.broadcast(websocket.NewMessage("chore", "updated", chore.ID, chore.TeamID))
	respond(w, http.StatusOK, map[string]any{"chore": updated}, "chore updated successfully")
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chore := h.gateChore(w, r)
	if chore == nil {
		return
	}

	if err := h.chores.Delete(chore.ID); err != nil {
		h.logger.Error("delete chore", "error", err)
		fail(w, http.StatusInternalServerError, "failed to delete chore")
		return
	}

	h.broadcast(websocket.NewMessage("chore", "deleted", chore.ID, chore.TeamID))
	respond(w, http.StatusOK, nil, "chore deleted successfully")
}

// Complete marks a chore done. The status flip and the history insert happen
// in one transaction; completing an already-completed chore is a conflict and
// records nothing.
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	chore := h.gateChore(w, r)
	if chore == nil {
		return
	}

	// The body is optional, but a body that is present must parse.
	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	completed, err := h.chores.Complete(chore.ID, auth.UserID(r.Context()), req.Notes)
	if errors.Is(err, store.ErrChoreNotFound) {
		fail(w, http.StatusNotFound, "chore not found")
		return
	}
	if errors.Is(err, store.ErrChoreNotActive) {
		fail(w, http.StatusConflict, "chore is already completed or archived")
		return
	}
	if err != nil {
		h.logger.Error("complete chore", "error", err)
		fail(w, http.StatusInternalServerError, "failed to complete chore")
		return
	}

	h.broadcast(websocket.NewMessage("chore", "completed", chore.ID, chore.TeamID))
	respond(w, http.StatusOK, map[string]any{"chore": completed}, "chore completed successfully")
}

func (h *ChoreHandler) History(w http.ResponseWriter, r *http.Request) {
	chore := h.gateChore(w, r)
	if chore == nil {
		return
	}

	completions, err := h.chores.ListCompletions(chore.ID)
	if err != nil {
		h.logger.Error("list completions", "error", err)
		fail(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if completions == nil {
		completions = []model.ChoreCompletion{}
	}
	respond(w, http.StatusOK, map[string]any{"completions": completions}, "")
}

// Instances lists the dated occurrences spawned from a recurrence template.
func (h *ChoreHandler) Instances(w http.ResponseWriter, r *http.Request) {
	chore := h.gateChore(w, r)
	if chore == nil {
		return
	}

	instances, err := h.chores.ListInstancesByParent(chore.ID)
	if err != nil {
		h.logger.Error("list instances", "error", err)
		fail(w, http.StatusInternalServerError, "failed to list instances")
		return
	}
	if instances == nil {
		instances = []model.Chore{}
	}
	respond(w, http.StatusOK, map[string]any{"instances": instances}, "")
}
