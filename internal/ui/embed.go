package ui

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/joescharf/pir/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Tracker is the state holder the page renders and drives.
// *tracker.Tracker satisfies it.
type Tracker interface {
	Snapshot() models.State
	SubmitDraft(ctx context.Context, draft models.Issue) bool
	LoadIssues(ctx context.Context)
	ChangeStatus(ctx context.Context, id int64, status models.IssueStatus)
	DeleteIssue(ctx context.Context, id int64)
}

// StaticFS returns the embedded static/ filesystem with the prefix stripped.
func StaticFS() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}

type pageData struct {
	models.State
	Statuses []models.IssueStatus
	// FormError explains why a submitted draft was not sent.
	FormError string
}

// errCreateBusy is shown when a submit arrives while another create is in
// flight; the submitted values are echoed back so nothing typed is lost.
const errCreateBusy = "Another issue is being created. Please submit again."

type server struct {
	tracker Tracker
	page    *template.Template
}

// Handler returns the web client: the issue page, its form actions, and the
// embedded stylesheet. Every action redirects back to the page.
func Handler(t Tracker) (http.Handler, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := StaticFS()
	if err != nil {
		return nil, err
	}

	s := &server{tracker: t, page: page}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.index)
	mux.HandleFunc("POST /issues", s.create)
	mux.HandleFunc("POST /issues/{id}/status", s.changeStatus)
	mux.HandleFunc("POST /issues/{id}/delete", s.delete)
	mux.HandleFunc("POST /refresh", s.refresh)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	return mux, nil
}

func (s *server) index(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageData{State: s.tracker.Snapshot(), Statuses: models.Statuses()})
}

func (s *server) render(w http.ResponseWriter, status int, data pageData) {
	// Render to a buffer so a template error doesn't leave a half-written page.
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		slog.Error("render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// rejectDraft re-renders the page with the submitted draft and a form message.
func (s *server) rejectDraft(w http.ResponseWriter, status int, draft models.Issue, msg string) {
	data := pageData{State: s.tracker.Snapshot(), Statuses: models.Statuses(), FormError: msg}
	data.Draft = draft
	s.render(w, status, data)
}

// opContext detaches tracker operations from the browser request: once sent,
// a backend call runs to completion even if the user navigates away.
func opContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func backToPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	draft := models.Issue{
		Title:       r.PostForm.Get("title"),
		Description: r.PostForm.Get("description"),
		Status:      models.DefaultStatus,
	}
	if st, err := models.ParseStatus(r.PostForm.Get("status")); err == nil {
		draft.Status = st
	}
	if err := draft.Validate(); err != nil {
		s.rejectDraft(w, http.StatusUnprocessableEntity, draft, capitalize(err.Error()))
		return
	}
	if !s.tracker.SubmitDraft(opContext(r), draft) {
		s.rejectDraft(w, http.StatusConflict, draft, errCreateBusy)
		return
	}
	backToPage(w, r)
}

func (s *server) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	// The select only offers known statuses; anything else is passed through
	// and left for the backend to reject.
	status := models.IssueStatus(r.PostForm.Get("status"))
	s.tracker.ChangeStatus(opContext(r), id, status)
	backToPage(w, r)
}

func (s *server) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.tracker.DeleteIssue(opContext(r), id)
	backToPage(w, r)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	s.tracker.LoadIssues(opContext(r))
	backToPage(w, r)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid issue id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
