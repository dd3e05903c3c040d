package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Joseda-hg/lazytodo/internal/board"
	"github.com/Joseda-hg/lazytodo/internal/export"
	"github.com/Joseda-hg/lazytodo/internal/filter"
	"github.com/Joseda-hg/lazytodo/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
}

var (
	indexTemplate = template.Must(template.New("index.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/index.tmpl"))
	taskTemplate  = template.Must(template.New("task.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/task.tmpl"))
)

// Authenticator reports whether a session is available to talk to the API.
type Authenticator interface {
	Authenticated() bool
}

type Server struct {
	board *board.Board
	auth  Authenticator
	now   func() time.Time
}

func NewServer(b *board.Board, auth Authenticator) *Server {
	return &Server{board: b, auth: auth, now: time.Now}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/tasks/", s.taskHandler)
	mux.HandleFunc("/api/tasks", s.apiTasksHandler)
	mux.HandleFunc("/api/tasks/", s.apiTaskHandler)
	mux.HandleFunc("/api/stats", s.apiStatsHandler)
	mux.HandleFunc("/export.csv", s.exportHandler)
	mux.HandleFunc("/reload", s.reloadHandler)
	return s.requireSession(mux)
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Authenticated() {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("login required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	criteria := criteriaFromRequest(r)
	tasks := s.board.Visible(criteria, s.now())

	data := struct {
		Criteria  model.Criteria
		Statuses  []model.Status
		Groups    []string
		Summary   filter.Summary
		Tasks     []model.Task
		UpdatedAt time.Time
	}{
		Criteria:  criteria,
		Statuses:  model.Statuses,
		Groups:    s.board.Groups(),
		Summary:   s.board.Summary(),
		Tasks:     tasks,
		UpdatedAt: s.board.LoadedAt(),
	}

	if err := indexTemplate.Execute(w, data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
}

func (s *Server) taskHandler(w http.ResponseWriter, r *http.Request) {
	task, err := s.lookup(r.URL.Path, "/tasks/")
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	draft, editing := s.board.Draft(task.ID)
	data := struct {
		Task    model.Task
		Draft   string
		Editing bool
	}{Task: task, Draft: draft, Editing: editing}

	if err := taskTemplate.Execute(w, data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
}

func (s *Server) apiTasksHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.board.Visible(criteriaFromRequest(r), s.now()))
}

func (s *Server) apiTaskHandler(w http.ResponseWriter, r *http.Request) {
	task, err := s.lookup(r.URL.Path, "/api/tasks/")
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, task)
}

func (s *Server) apiStatsHandler(w http.ResponseWriter, r *http.Request) {
	summary := s.board.Summary()
	payload := struct {
		filter.Summary
		Percent int `json:"percent"`
	}{Summary: summary, Percent: summary.Percent()}
	writeJSON(w, payload)
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.DefaultFileName))
	_ = export.WriteCSV(w, s.board.Tasks())
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := s.board.Load(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, struct {
		Tasks int `json:"tasks"`
	}{Tasks: len(s.board.Tasks())})
}

func (s *Server) lookup(path, prefix string) (model.Task, error) {
	id, err := parseID(path, prefix)
	if err != nil {
		return model.Task{}, err
	}
	task, ok := s.board.Get(id)
	if !ok {
		return model.Task{}, fmt.Errorf("task %d: %w", id, board.ErrUnknownTask)
	}
	return task, nil
}

func criteriaFromRequest(r *http.Request) model.Criteria {
	values := r.URL.Query()
	criteria := model.Criteria{
		Status:    model.Status(strings.TrimSpace(values.Get("status"))),
		Frequency: model.Frequency(strings.TrimSpace(values.Get("frequency"))),
		Group:     strings.TrimSpace(values.Get("group")),
		Query:     strings.TrimSpace(values.Get("q")),
	}
	if value := strings.TrimSpace(values.Get("date")); value != "" {
		if _, err := time.Parse(model.DateLayout, value); err == nil {
			criteria.Date = value
		}
	}
	return criteria
}

func parseID(path, prefix string) (int64, error) {
	if !strings.HasPrefix(path, prefix) {
		return 0, fmt.Errorf("invalid path")
	}
	value := strings.TrimPrefix(path, prefix)
	value = strings.Trim(value, "/")
	if value == "" {
		return 0, fmt.Errorf("missing id")
	}
	return strconv.ParseInt(value, 10, 64)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
