package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Joseda-hg/lazytodo/internal/api"
	"github.com/Joseda-hg/lazytodo/internal/board"
	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/session"
)

var testToday = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu         sync.Mutex
	tasks      []model.Task
	nextID     int64
	patches    int
	failDelete bool
	access     string
}

func newFakeAPI(t *testing.T, tasks ...model.Task) (*fakeAPI, *httptest.Server) {
	t.Helper()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, session.Claims{
		Username: "ana",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	f := &fakeAPI{tasks: tasks, nextID: 100, access: access}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "ana" || creds.Password != "secret" {
			http.Error(w, `{"detail":"No active account"}`, http.StatusUnauthorized)
			return
		}
		writeTestJSON(w, map[string]string{"access": f.access, "refresh": "refresh-token"})
	})
	mux.HandleFunc("/todos/", f.handleTodos)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) handleTodos(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.access {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/todos/"), "/")
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			writeTestJSON(w, f.tasks)
		case http.MethodPost:
			var task model.Task
			_ = json.NewDecoder(r.Body).Decode(&task)
			f.nextID++
			task.ID = f.nextID
			f.tasks = append([]model.Task{task}, f.tasks...)
			writeTestJSON(w, task)
		}
		return
	}

	id, _ := strconv.ParseInt(rest, 10, 64)
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		switch r.Method {
		case http.MethodPatch:
			f.patches++
			var patch model.Patch
			_ = json.NewDecoder(r.Body).Decode(&patch)
			if patch.Status != nil {
				f.tasks[i].Status = *patch.Status
			}
			if patch.Notes != nil {
				f.tasks[i].Notes = *patch.Notes
			}
			writeTestJSON(w, f.tasks[i])
		case http.MethodDelete:
			if f.failDelete {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
		}
		return
	}
	http.NotFound(w, r)
}

func (f *fakeAPI) task(t *testing.T, id int64) model.Task {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.tasks {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("task %d not found on server", id)
	return model.Task{}
}

func writeTestJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func newTestUI(t *testing.T, signedIn bool, tasks ...model.Task) (*UI, *fakeAPI, *session.Session) {
	t.Helper()
	fake, srv := newFakeAPI(t, tasks...)

	sess, err := session.Load(context.Background(), session.NewMemory())
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	route := session.RouteLogin
	if signedIn {
		if err := sess.SetTokens(context.Background(), fake.access, "refresh-token"); err != nil {
			t.Fatalf("set tokens: %v", err)
		}
		route = session.RouteTasks
	}

	client := api.New(srv.URL, sess)
	ui := New(Options{
		Auth:       client,
		Board:      board.New(client),
		Session:    sess,
		Route:      route,
		ExportPath: filepath.Join(t.TempDir(), "tasks_export.csv"),
		Now:        func() time.Time { return testToday },
	})
	client.SetLogoutHook(ui.SessionExpired)
	if signedIn {
		ui.reloadTasks()
		if ui.status != "" {
			t.Fatalf("initial load: %s", ui.status)
		}
	}
	return ui, fake, sess
}

func dailyTask(id int64, title string) model.Task {
	return model.Task{ID: id, Title: title, Status: model.StatusNotStarted, Frequency: model.FrequencyDaily, Date: "2026-10-15"}
}

func TestLoginFailureShowsGenericMessage(t *testing.T) {
	ui, _, sess := newTestUI(t, false)

	ui.login.fields[loginUsername].Value = "ana"
	ui.login.fields[loginPassword].Value = "wrong"
	if err := ui.submitLogin(nil, nil); err != nil {
		t.Fatalf("submit login: %v", err)
	}

	if ui.loginError != msgLoginFailed {
		t.Fatalf("expected %q, got %q", msgLoginFailed, ui.loginError)
	}
	if ui.route != session.RouteLogin {
		t.Fatalf("expected to stay on login")
	}
	if ui.login.fields[loginPassword].Value != "" {
		t.Fatalf("expected password to be cleared")
	}
	if sess.Authenticated() {
		t.Fatalf("expected no stored session")
	}
}

func TestLoginNetworkFailureShowsGenericMessage(t *testing.T) {
	sess, err := session.Load(context.Background(), session.NewMemory())
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	client := api.New("http://127.0.0.1:1", sess, api.WithTimeout(2*time.Second))
	ui := New(Options{
		Auth:    client,
		Board:   board.New(client),
		Session: sess,
		Route:   session.RouteLogin,
		Now:     func() time.Time { return testToday },
	})

	ui.login.fields[loginUsername].Value = "ana"
	ui.login.fields[loginPassword].Value = "secret"
	if err := ui.submitLogin(nil, nil); err != nil {
		t.Fatalf("submit login: %v", err)
	}

	if ui.loginError != msgLoginFailed {
		t.Fatalf("expected %q, got %q", msgLoginFailed, ui.loginError)
	}
	if ui.route != session.RouteLogin {
		t.Fatalf("expected to stay on login")
	}
	if ui.login.fields[loginPassword].Value != "" {
		t.Fatalf("expected password to be cleared")
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	ui, _, _ := newTestUI(t, false)
	ui.login.fields[loginUsername].Value = "ana"
	if err := ui.submitLogin(nil, nil); err != nil {
		t.Fatalf("submit login: %v", err)
	}
	if ui.loginError == "" || ui.route != session.RouteLogin {
		t.Fatalf("expected validation error, got %q", ui.loginError)
	}
}

func TestLoginLoadsTasks(t *testing.T) {
	ui, _, sess := newTestUI(t, false, dailyTask(1, "Buy groceries"))

	ui.login.fields[loginUsername].Value = "ana"
	ui.login.fields[loginPassword].Value = "secret"
	if err := ui.submitLogin(nil, nil); err != nil {
		t.Fatalf("submit login: %v", err)
	}

	if ui.route != session.RouteTasks {
		t.Fatalf("expected tasks route, got %s (error %q)", ui.route, ui.loginError)
	}
	if len(ui.tasks) != 1 {
		t.Fatalf("expected 1 visible task, got %d", len(ui.tasks))
	}
	if sess.Username() != "ana" {
		t.Fatalf("expected username ana, got %q", sess.Username())
	}
}

func TestCycleStatusThreeTimes(t *testing.T) {
	ui, fake, _ := newTestUI(t, true, dailyTask(1, "Buy groceries"))
	ui.selectedTask = 0

	want := []model.Status{model.StatusPending, model.StatusCompleted, model.StatusNotStarted}
	for i, expected := range want {
		if err := ui.cycleStatus(nil, nil); err != nil {
			t.Fatalf("cycle status: %v", err)
		}
		if ui.status != "" {
			t.Fatalf("toggle %d: unexpected status line %q", i+1, ui.status)
		}
		if got := fake.task(t, 1).Status; got != expected {
			t.Fatalf("toggle %d: server has %q, expected %q", i+1, got, expected)
		}
		if got := ui.tasks[0].Status; got != expected {
			t.Fatalf("toggle %d: list shows %q, expected %q", i+1, got, expected)
		}
	}
}

func TestDeleteFailureIsSurfaced(t *testing.T) {
	ui, fake, _ := newTestUI(t, true, dailyTask(1, "Buy groceries"))
	fake.failDelete = true

	if err := ui.deleteTask(nil, nil); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if !strings.Contains(ui.status, "boom") {
		t.Fatalf("expected server error on status line, got %q", ui.status)
	}
	if len(ui.tasks) != 1 {
		t.Fatalf("expected task to remain, got %d", len(ui.tasks))
	}

	fake.failDelete = false
	if err := ui.deleteTask(nil, nil); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if len(ui.tasks) != 0 || ui.status != "" {
		t.Fatalf("expected task removed and status cleared, got %d tasks, %q", len(ui.tasks), ui.status)
	}
}

func TestAddTask(t *testing.T) {
	ui, _, _ := newTestUI(t, true, dailyTask(1, "Buy groceries"))

	if err := ui.addTask(nil, nil); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if err := ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit form: %v", err)
	}
	if ui.form == nil {
		t.Fatalf("expected form to stay open after a rejected title")
	}
	if ui.status != api.ErrEmptyTitle.Error() {
		t.Fatalf("expected %q, got %q", api.ErrEmptyTitle.Error(), ui.status)
	}

	ui.form.fields[fieldTitle].Value = "  Stretch  "
	ui.form.fields[fieldGroup].Value = "Health"
	if err := ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit form: %v", err)
	}
	if ui.form != nil {
		t.Fatalf("expected form to close, status %q", ui.status)
	}
	if len(ui.tasks) != 2 || ui.tasks[0].Title != "Stretch" {
		t.Fatalf("expected new task first, got %+v", ui.tasks)
	}
	if ui.tasks[0].Date != "2026-10-15" || ui.tasks[0].Status != model.StatusNotStarted {
		t.Fatalf("unexpected new task %+v", ui.tasks[0])
	}
	if len(ui.groups) != 1 || ui.groups[0] != "Health" {
		t.Fatalf("expected Health category, got %v", ui.groups)
	}
}

func TestNoteEditing(t *testing.T) {
	ui, fake, _ := newTestUI(t, true, dailyTask(1, "Buy groceries"))

	if err := ui.editNote(nil, nil); err != nil {
		t.Fatalf("edit note: %v", err)
	}
	if err := ui.cancelNote(nil, nil); err != nil {
		t.Fatalf("cancel note: %v", err)
	}
	if fake.patches != 0 {
		t.Fatalf("expected cancel to skip the server, got %d patches", fake.patches)
	}

	if err := ui.editNote(nil, nil); err != nil {
		t.Fatalf("edit note: %v", err)
	}
	ui.saveNote("oat milk")
	if ui.noteTaskID != 0 {
		t.Fatalf("expected editor to close")
	}
	if got := fake.task(t, 1).Notes; got != "oat milk" {
		t.Fatalf("expected server note, got %q", got)
	}
	if ui.tasks[0].Notes != "oat milk" {
		t.Fatalf("expected cached note, got %q", ui.tasks[0].Notes)
	}
}

func TestFilterKeys(t *testing.T) {
	weekly := dailyTask(2, "Review week")
	weekly.Frequency = model.FrequencyWeekly
	old := dailyTask(3, "Yesterday's run")
	old.Date = "2026-10-14"
	ui, _, _ := newTestUI(t, true, dailyTask(1, "Buy groceries"), weekly, old)

	if len(ui.tasks) != 2 {
		t.Fatalf("expected today's daily and the weekly task, got %d", len(ui.tasks))
	}

	wantFrequencies := []model.Frequency{model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly, ""}
	for _, expected := range wantFrequencies {
		if err := ui.cycleFrequencyFilter(nil, nil); err != nil {
			t.Fatalf("cycle frequency: %v", err)
		}
		if ui.criteria.Frequency != expected {
			t.Fatalf("expected frequency %q, got %q", expected, ui.criteria.Frequency)
		}
	}

	ui.applyDate("yesterday")
	if ui.criteria.Date != "" || !strings.Contains(ui.status, "invalid date") {
		t.Fatalf("expected invalid date to be rejected, got %q / %q", ui.criteria.Date, ui.status)
	}
	ui.applyDate("2026-10-14")
	if len(ui.tasks) != 2 || ui.tasks[0].ID != 2 || ui.tasks[1].ID != 3 {
		t.Fatalf("expected weekly and yesterday's task, got %+v", ui.tasks)
	}

	ui.applySearch(" RUN ")
	if len(ui.tasks) != 1 || ui.tasks[0].ID != 3 {
		t.Fatalf("expected search to match one task, got %+v", ui.tasks)
	}

	if err := ui.clearFilters(nil, nil); err != nil {
		t.Fatalf("clear filters: %v", err)
	}
	if ui.criteria.Date != "" || ui.criteria.Query != "RUN" {
		t.Fatalf("expected date cleared and search kept, got %+v", ui.criteria)
	}
}

func TestSidebarPanesFilter(t *testing.T) {
	home := dailyTask(1, "Buy groceries")
	home.Group = "Home"
	work := dailyTask(2, "Standup")
	work.Group = "Work"
	work.Status = model.StatusPending
	ui, _, _ := newTestUI(t, true, home, work)

	if err := ui.focusStatuses(nil, nil); err != nil {
		t.Fatalf("focus statuses: %v", err)
	}
	_ = ui.moveDown(nil, nil)
	_ = ui.moveDown(nil, nil)
	if ui.criteria.Status != model.StatusPending || len(ui.tasks) != 1 || ui.tasks[0].ID != 2 {
		t.Fatalf("expected pending filter, got %q with %d tasks", ui.criteria.Status, len(ui.tasks))
	}
	_ = ui.moveUp(nil, nil)
	_ = ui.moveUp(nil, nil)
	if ui.criteria.Status != "" {
		t.Fatalf("expected All to clear the status filter")
	}

	if err := ui.focusCategories(nil, nil); err != nil {
		t.Fatalf("focus categories: %v", err)
	}
	_ = ui.moveDown(nil, nil)
	if ui.criteria.Group != "Home" || len(ui.tasks) != 1 || ui.tasks[0].ID != 1 {
		t.Fatalf("expected Home filter, got %q with %d tasks", ui.criteria.Group, len(ui.tasks))
	}
}

func TestExportWritesWholeCache(t *testing.T) {
	old := dailyTask(3, "Yesterday's run")
	old.Date = "2026-10-14"
	ui, _, _ := newTestUI(t, true, dailyTask(1, "Buy groceries"), old)

	if err := ui.exportTasks(nil, nil); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(ui.exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(ui.status, "Exported 2 tasks") {
		t.Fatalf("unexpected status %q", ui.status)
	}
}

func TestLogoutReturnsToLogin(t *testing.T) {
	ui, _, sess := newTestUI(t, true, dailyTask(1, "Buy groceries"))
	ui.criteria.Query = "groc"

	if err := ui.logout(nil, nil); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if ui.route != session.RouteLogin || ui.login == nil {
		t.Fatalf("expected login screen")
	}
	if sess.Authenticated() {
		t.Fatalf("expected session to be cleared")
	}
	if len(ui.board.Tasks()) != 0 || ui.criteria.Query != "" {
		t.Fatalf("expected cache and criteria to be reset")
	}
}

func TestSessionExpiredReturnsToLogin(t *testing.T) {
	ui, _, _ := newTestUI(t, true, dailyTask(1, "Buy groceries"))
	ui.noteTaskID = 1

	ui.SessionExpired()
	if ui.route != session.RouteLogin {
		t.Fatalf("expected login route")
	}
	if ui.loginError != msgSessionExpired {
		t.Fatalf("expected %q, got %q", msgSessionExpired, ui.loginError)
	}
	if ui.noteTaskID != 0 {
		t.Fatalf("expected open editors to close")
	}
}

func TestInputBlocksTaskKeys(t *testing.T) {
	ui, fake, _ := newTestUI(t, true, dailyTask(1, "Buy groceries"))
	ui.searchActive = true

	if err := ui.cycleStatus(nil, nil); err != nil {
		t.Fatalf("cycle status: %v", err)
	}
	if fake.patches != 0 {
		t.Fatalf("expected no request while search is open")
	}
}

func TestComputeLayout(t *testing.T) {
	got := computeLayout(120, 40)
	if got.leftWidth != 29 {
		t.Fatalf("expected left width 29, got %d", got.leftWidth)
	}
	if got.statusHeight != 6 {
		t.Fatalf("expected status pane height 6, got %d", got.statusHeight)
	}
	if got.tasksHeight != 24 {
		t.Fatalf("expected tasks height 24, got %d", got.tasksHeight)
	}

	small := computeLayout(30, 5)
	if small.statusHeight > 4 || small.tasksHeight > 5 {
		t.Fatalf("expected small layout to fit, got %+v", small)
	}
}

func TestCycleOption(t *testing.T) {
	groups := []string{"Home", "Work"}
	if got := cycleOption(groups, "", 1); got != "Home" {
		t.Fatalf("expected Home, got %q", got)
	}
	if got := cycleOption(groups, "Work", 1); got != "Home" {
		t.Fatalf("expected wrap to Home, got %q", got)
	}
	if got := cycleOption(groups, "Garden", -1); got != "Work" {
		t.Fatalf("expected Work, got %q", got)
	}
	if got := cycleOption(nil, "typed", 1); got != "typed" {
		t.Fatalf("expected typed value kept, got %q", got)
	}
	if got := cycleFrequency(model.FrequencyDaily, -1); got != model.FrequencyMonthly {
		t.Fatalf("expected monthly, got %q", got)
	}
}

func TestSessionLabel(t *testing.T) {
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(2*time.Hour + 30*time.Minute)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if got := sessionLabel(token, now); got != "token expires 2 hours from now" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := sessionLabel("garbage", now); got != "no session" {
		t.Fatalf("unexpected label %q", got)
	}
}
