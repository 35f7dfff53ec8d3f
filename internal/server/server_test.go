package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"choreboard/internal/config"
	"choreboard/internal/database"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		CORSOrigin: "http://localhost:3000",
	}
	srv := New(db, cfg, slog.Default())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (int, testEnvelope) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env testEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s response: %v", method, url, err)
	}
	return resp.StatusCode, env
}

func register(t *testing.T, client *http.Client, base, email, name string) {
	t.Helper()
	status, env := doJSON(t, client, "POST", base+"/api/auth/register", map[string]string{
		"email": email, "password": "hunter22", "name": name,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d, error %q", email, status, env.Error)
	}
}

func createTeam(t *testing.T, client *http.Client, base, name string) int64 {
	t.Helper()
	status, env := doJSON(t, client, "POST", base+"/api/teams", map[string]string{"name": name})
	if status != http.StatusCreated {
		t.Fatalf("create team: status %d, error %q", status, env.Error)
	}
	var data struct {
		Team struct {
			ID int64 `json:"id"`
		} `json:"team"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode team: %v", err)
	}
	return data.Team.ID
}

func createChore(t *testing.T, client *http.Client, base string, teamID int64, title string) int64 {
	t.Helper()
	status, env := doJSON(t, client, "POST", fmt.Sprintf("%s/api/teams/%d/chores", base, teamID), map[string]any{
		"title":    title,
		"due_date": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	if status != http.StatusCreated {
		t.Fatalf("create chore: status %d, error %q", status, env.Error)
	}
	var data struct {
		Chore struct {
			ID int64 `json:"id"`
		} `json:"chore"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode chore: %v", err)
	}
	return data.Chore.ID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	register(t, client, ts.URL, "ada@example.com", "Ada")

	// Registering sets the session cookies, so /me works immediately.
	status, env := doJSON(t, client, "GET", ts.URL+"/api/auth/me", nil)
	if status != http.StatusOK {
		t.Fatalf("me after register: status %d, error %q", status, env.Error)
	}
	var me struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.User.Email != "ada@example.com" {
		t.Errorf("me email = %q, want ada@example.com", me.User.Email)
	}

	// Duplicate registration conflicts, case-insensitively.
	status, _ = doJSON(t, client, "POST", ts.URL+"/api/auth/register", map[string]string{
		"email": "ADA@example.com", "password": "x", "name": "Imposter",
	})
	if status != http.StatusConflict {
		t.Errorf("duplicate register: status %d, want 409", status)
	}

	status, _ = doJSON(t, client, "POST", ts.URL+"/api/auth/logout", nil)
	if status != http.StatusOK {
		t.Fatalf("logout: status %d", status)
	}
	status, _ = doJSON(t, client, "GET", ts.URL+"/api/auth/me", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("me after logout: status %d, want 401", status)
	}

	// Wrong password and unknown email both yield the same 401.
	for _, email := range []string{"ada@example.com", "ghost@example.com"} {
		status, env = doJSON(t, client, "POST", ts.URL+"/api/auth/login", map[string]string{
			"email": email, "password": "wrong",
		})
		if status != http.StatusUnauthorized {
			t.Errorf("login %s: status %d, want 401", email, status)
		}
		if env.Error != "invalid email or password" {
			t.Errorf("login %s: error %q, want generic message", email, env.Error)
		}
	}

	status, _ = doJSON(t, client, "POST", ts.URL+"/api/auth/login", map[string]string{
		"email": "ada@example.com", "password": "hunter22",
	})
	if status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}
}

func TestRefreshRotation(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	register(t, client, ts.URL, "ada@example.com", "Ada")

	// Capture the current refresh token before rotating it.
	u, _ := url.Parse(ts.URL + "/api/auth")
	var oldRefresh string
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == "refreshToken" {
			oldRefresh = c.Value
		}
	}
	if oldRefresh == "" {
		t.Fatal("no refresh cookie after register")
	}

	status, _ := doJSON(t, client, "POST", ts.URL+"/api/auth/refresh", nil)
	if status != http.StatusOK {
		t.Fatalf("refresh: status %d", status)
	}

	// Replaying the pre-rotation token fails: it was revoked.
	req, _ := http.NewRequest("POST", ts.URL+"/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: oldRefresh})
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		t.Fatalf("replay refresh: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("replayed refresh: status %d, want 401", resp.StatusCode)
	}

	// The rotated session still works.
	status, _ = doJSON(t, client, "GET", ts.URL+"/api/auth/me", nil)
	if status != http.StatusOK {
		t.Errorf("me after refresh: status %d, want 200", status)
	}
}

func TestMembershipGate(t *testing.T) {
	ts := newTestServer(t)
	ada := newClient(t)
	bob := newClient(t)

	register(t, ada, ts.URL, "ada@example.com", "Ada")
	register(t, bob, ts.URL, "bob@example.com", "Bob")

	teamID := createTeam(t, ada, ts.URL, "Kitchen")
	choreID := createChore(t, ada, ts.URL, teamID, "Dishes")

	// A non-member is rejected on every team-scoped and chore-scoped verb.
	gated := []struct {
		method string
		path   string
		body   any
	}{
		{"GET", fmt.Sprintf("/api/teams/%d", teamID), nil},
		{"PUT", fmt.Sprintf("/api/teams/%d", teamID), map[string]string{"name": "Hijacked"}},
		{"DELETE", fmt.Sprintf("/api/teams/%d", teamID), nil},
		{"GET", fmt.Sprintf("/api/teams/%d/members", teamID), nil},
		{"GET", fmt.Sprintf("/api/teams/%d/chores", teamID), nil},
		{"POST", fmt.Sprintf("/api/teams/%d/chores", teamID), map[string]any{"title": "Sneak", "due_date": "2026-09-10"}},
		{"GET", fmt.Sprintf("/api/chores/%d", choreID), nil},
		{"PUT", fmt.Sprintf("/api/chores/%d", choreID), map[string]string{"title": "Sneak"}},
		{"DELETE", fmt.Sprintf("/api/chores/%d", choreID), nil},
		{"POST", fmt.Sprintf("/api/chores/%d/complete", choreID), nil},
		{"GET", fmt.Sprintf("/api/chores/%d/history", choreID), nil},
	}
	for _, g := range gated {
		status, _ := doJSON(t, bob, g.method, ts.URL+g.path, g.body)
		if status != http.StatusForbidden {
			t.Errorf("%s %s as non-member: status %d, want 403", g.method, g.path, status)
		}
	}

	// A missing team is 404, not 403, even for non-members.
	status, _ := doJSON(t, bob, "GET", ts.URL+"/api/teams/9999/chores", nil)
	if status != http.StatusNotFound {
		t.Errorf("missing team: status %d, want 404", status)
	}

	// Ada invites Bob; the gate opens.
	status, _ = doJSON(t, ada, "POST", ts.URL+fmt.Sprintf("/api/teams/%d/members", teamID), map[string]string{
		"email": "bob@example.com",
	})
	if status != http.StatusOK {
		t.Fatalf("add member: status %d", status)
	}
	status, _ = doJSON(t, bob, "GET", ts.URL+fmt.Sprintf("/api/teams/%d/chores", teamID), nil)
	if status != http.StatusOK {
		t.Errorf("list chores as member: status %d, want 200", status)
	}

	// Inviting twice is rejected.
	status, _ = doJSON(t, ada, "POST", ts.URL+fmt.Sprintf("/api/teams/%d/members", teamID), map[string]string{
		"email": "bob@example.com",
	})
	if status != http.StatusBadRequest {
		t.Errorf("re-invite: status %d, want 400", status)
	}

	// Plain members cannot delete the team or remove other members.
	status, _ = doJSON(t, bob, "DELETE", ts.URL+fmt.Sprintf("/api/teams/%d", teamID), nil)
	if status != http.StatusForbidden {
		t.Errorf("member deleting team: status %d, want 403", status)
	}

	// Bob completes the chore; a second completion conflicts.
	status, _ = doJSON(t, bob, "POST", ts.URL+fmt.Sprintf("/api/chores/%d/complete", choreID), map[string]string{"notes": "done"})
	if status != http.StatusOK {
		t.Fatalf("complete: status %d", status)
	}
	status, _ = doJSON(t, ada, "POST", ts.URL+fmt.Sprintf("/api/chores/%d/complete", choreID), nil)
	if status != http.StatusConflict {
		t.Errorf("double complete: status %d, want 409", status)
	}

	status, env := doJSON(t, ada, "GET", ts.URL+fmt.Sprintf("/api/chores/%d/history", choreID), nil)
	if status != http.StatusOK {
		t.Fatalf("history: status %d", status)
	}
	var hist struct {
		Completions []struct {
			Notes string `json:"notes"`
		} `json:"completions"`
	}
	if err := json.Unmarshal(env.Data, &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Completions) != 1 || hist.Completions[0].Notes != "done" {
		t.Errorf("history = %+v, want one completion with notes 'done'", hist.Completions)
	}

	// Bob removes himself and is locked out again.
	var bobID int64
	status, env = doJSON(t, bob, "GET", ts.URL+"/api/auth/me", nil)
	if status != http.StatusOK {
		t.Fatalf("me: status %d", status)
	}
	var me struct {
		User struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	bobID = me.User.ID

	status, _ = doJSON(t, bob, "DELETE", ts.URL+fmt.Sprintf("/api/teams/%d/members/%d", teamID, bobID), nil)
	if status != http.StatusOK {
		t.Fatalf("leave team: status %d", status)
	}
	status, _ = doJSON(t, bob, "GET", ts.URL+fmt.Sprintf("/api/teams/%d/chores", teamID), nil)
	if status != http.StatusForbidden {
		t.Errorf("list after leaving: status %d, want 403", status)
	}
}

func TestTeamDeleteCascade(t *testing.T) {
	ts := newTestServer(t)
	ada := newClient(t)

	register(t, ada, ts.URL, "ada@example.com", "Ada")
	teamID := createTeam(t, ada, ts.URL, "Doomed")
	choreID := createChore(t, ada, ts.URL, teamID, "Dishes")

	status, _ := doJSON(t, ada, "DELETE", ts.URL+fmt.Sprintf("/api/teams/%d", teamID), nil)
	if status != http.StatusOK {
		t.Fatalf("delete team: status %d", status)
	}

	// The team and everything under it are gone.
	status, _ = doJSON(t, ada, "GET", ts.URL+fmt.Sprintf("/api/teams/%d", teamID), nil)
	if status != http.StatusNotFound {
		t.Errorf("get deleted team: status %d, want 404", status)
	}
	status, _ = doJSON(t, ada, "GET", ts.URL+fmt.Sprintf("/api/chores/%d", choreID), nil)
	if status != http.StatusNotFound {
		t.Errorf("get cascaded chore: status %d, want 404", status)
	}
}

func TestChoreValidation(t *testing.T) {
	ts := newTestServer(t)
	ada := newClient(t)

	register(t, ada, ts.URL, "ada@example.com", "Ada")
	teamID := createTeam(t, ada, ts.URL, "Crew")
	choresURL := fmt.Sprintf("%s/api/teams/%d/chores", ts.URL, teamID)

	bad := []map[string]any{
		{"due_date": "2026-09-10"},                                                  // missing title
		{"title": "X"},                                                              // missing due date
		{"title": "X", "due_date": "2026-09-10", "priority": "urgent"},              // bad priority
		{"title": "X", "due_date": "2026-09-10", "color": "red"},                    // bad color
		{"title": "X", "due_date": "2026-09-10", "is_recurring": true},              // recurring without pattern
		{"title": "X", "due_date": "2026-09-10", "assigned_to": int64(9999)},        // assignee not a member
		{"title": "X", "due_date": "2026-09-10", "recurrence_pattern": "fortnight", "is_recurring": true}, // bad pattern
	}
	for i, body := range bad {
		status, _ := doJSON(t, ada, "POST", choresURL, body)
		if status != http.StatusBadRequest {
			t.Errorf("bad create %d: status %d, want 400", i, status)
		}
	}

	choreID := createChore(t, ada, ts.URL, teamID, "Dishes")

	// A malformed completion body is rejected before anything is recorded;
	// an empty body is fine.
	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/api/chores/%d/complete", ts.URL, choreID),
		bytes.NewReader([]byte(`{"notes":`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ada.Do(req)
	if err != nil {
		t.Fatalf("malformed complete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed complete: status %d, want 400", resp.StatusCode)
	}
	status, _ := doJSON(t, ada, "POST", fmt.Sprintf("%s/api/chores/%d/complete", ts.URL, choreID), nil)
	if status != http.StatusOK {
		t.Errorf("complete with empty body after rejected attempt: status %d, want 200", status)
	}

	// Explicit null on a required field is rejected.
	req, _ = http.NewRequest("PUT", fmt.Sprintf("%s/api/chores/%d", ts.URL, choreID),
		bytes.NewReader([]byte(`{"title":null}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = ada.Do(req)
	if err != nil {
		t.Fatalf("null title update: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("null title update: status %d, want 400", resp.StatusCode)
	}

	// Calendar requires both bounds.
	calendarURL := fmt.Sprintf("%s/api/teams/%d/calendar", ts.URL, teamID)
	status, _ = doJSON(t, ada, "GET", calendarURL+"?start_date=2026-09-01", nil)
	if status != http.StatusBadRequest {
		t.Errorf("calendar without end_date: status %d, want 400", status)
	}
	status, _ = doJSON(t, ada, "GET", calendarURL+"?start_date=2026-09-01&end_date=2026-09-30", nil)
	if status != http.StatusOK {
		t.Errorf("calendar: status %d, want 200", status)
	}
}
