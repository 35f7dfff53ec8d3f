package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"choreboard/internal/auth"
	"choreboard/internal/model"
	"choreboard/internal/store"
	"choreboard/internal/websocket"
)

type TeamHandler struct {
	teams  *store.TeamStore
	users  *store.UserStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewTeamHandler(ts *store.TeamStore, us *store.UserStore, hub *websocket.Hub, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{teams: ts, users: us, hub: hub, logger: logger}
}

func (h *TeamHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// gate resolves the team and enforces the membership check. A missing team is
// 404; an existing team the caller doesn't belong to is 403. Returns nil when
// the response has already been written.
func (h *TeamHandler) gate(w http.ResponseWriter, r *http.Request, teamID int64) *model.Team {
	team, err := h.teams.GetByID(teamID)
	if err != nil {
		h.logger.Error("get team", "error", err)
		fail(w, http.StatusInternalServerError, "failed to load team")
		return nil
	}
	if team == nil {
		fail(w, http.StatusNotFound, "team not found")
		return nil
	}

	ok, err := h.teams.IsMember(teamID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("check membership", "error", err)
		fail(w, http.StatusInternalServerError, "failed to check membership")
		return nil
	}
	if !ok {
		fail(w, http.StatusForbidden, "access denied: you are not a member of this team")
		return nil
	}
	return team
}

// requireAdmin checks the caller holds the admin role in the team. Only team
// deletion and removing other members are admin-gated; everything else runs
// on bare membership.
func (h *TeamHandler) requireAdmin(w http.ResponseWriter, r *http.Request, teamID int64) bool {
	member, err := h.teams.GetMember(teamID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get member", "error", err)
		fail(w, http.StatusInternalServerError, "failed to check role")
		return false
	}
	if member == nil || member.Role != model.RoleAdmin {
		fail(w, http.StatusForbidden, "admin role required")
		return false
	}
	return true
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list teams", "error", err)
		fail(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	if teams == nil {
		teams = []model.Team{}
	}
	respond(w, http.StatusOK, map[string]any{"teams": teams}, "")
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		fail(w, http.StatusBadRequest, "team name is required")
		return
	}

	userID := auth.UserID(r.Context())
	team, err := h.teams.Create(req.Name, req.Description, userID)
	if err != nil {
		h.logger.Error("create team", "error", err)
		fail(w, http.StatusInternalServerError, "failed to create team")
		return
	}

	// Creator becomes the team's first admin member.
	if _, err := h.teams.AddMember(team.ID, userID, model.RoleAdmin); err != nil {
		h.logger.Error("add creator as admin", "error", err)
		fail(w, http.StatusInternalServerError, "failed to create team")
		return
	}

	respond(w, http.StatusCreated, map[string]any{"team": team}, "team created successfully")
}

func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}

	team := h.gate(w, r, id)
	if team == nil {
		return
	}
	respond(w, http.StatusOK, map[string]any{"team": team}, "")
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if h.gate(w, r, id) == nil {
		return
	}

	var patch model.TeamPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if patch.Name.Set && !patch.Name.Valid {
		fail(w, http.StatusBadRequest, "name cannot be null")
		return
	}
	if patch.Name.Set && strings.TrimSpace(patch.Name.Value) == "" {
		fail(w, http.StatusBadRequest, "name cannot be empty")
		return
	}

	team, err := h.teams.Update(id, patch)
	if err != nil {
		h.logger.Error("update team", "error", err)
		fail(w, http.StatusInternalServerError, "failed to update team")
		return
	}

	h.broadcast(websocket.NewMessage("team", "updated", id, id))
	respond(w, http.StatusOK, map[string]any{"team": team}, "team updated successfully")
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if h.gate(w, r, id) == nil {
		return
	}
	if !h.requireAdmin(w, r, id) {
		return
	}

	if err := h.teams.Delete(id); err != nil {
		h.logger.Error("delete team", "error", err)
		fail(w, http.StatusInternalServerError, "failed to delete team")
		return
	}

	h.broadcast(websocket.NewMessage("team", "deleted", id, id))
	respond(w, http.StatusOK, nil, "team deleted successfully")
}

func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if h.gate(w, r, id) == nil {
		return
	}

	members, err := h.teams.ListMembers(id)
	if err != nil {
		h.logger.Error("list members", "error", err)
		fail(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.TeamMember{}
	}
	respond(w, http.StatusOK, map[string]any{"members": members}, "")
}

// AddMember invites a registered user into the team by email. Unknown emails
// are a 404: accounts must exist before they can be added.
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}
	if h.gate(w, r, id) == nil {
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		fail(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleMember {
		fail(w, http.StatusBadRequest, "role must be admin or member")
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("invite lookup", "error", err)
		fail(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	if user == nil {
		fail(w, http.StatusNotFound, "user not found with this email; they need to register first")
		return
	}

	member, err := h.teams.AddMember(id, user.ID, req.Role)
	if err != nil {
		h.logger.Error("add member", "error", err)
		fail(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	if member == nil {
		fail(w, http.StatusBadRequest, "user is already a member of this team")
		return
	}

	member.Name = user.Name
	member.Email = user.Email
	member.AvatarURL = user.AvatarURL

	h.broadcast(websocket.NewMessage("team_member", "added", user.ID, id))
	respond(w, http.StatusOK, map[string]any{"member": member}, "member added successfully")
}

// RemoveMember removes a membership row. Members may remove themselves
// (leave); removing anyone else requires the admin role.
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid team id")
		return
	}
	targetID, err := parseIDParam(r, "userId")
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if h.gate(w, r, id) == nil {
		return
	}

	if targetID != auth.UserID(r.Context()) && !h.requireAdmin(w, r, id) {
		return
	}

	if err := h.teams.RemoveMember(id, targetID); err != nil {
		h.logger.Error("remove member", "error", err)
		fail(w, http.StatusInternalServerError, "failed to remove member")
		return
	}

	h.broadcast(websocket.NewMessage("team_member", "removed", targetID, id))
	respond(w, http.StatusOK, nil, "member removed successfully")
}
