package main

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/nickyhof/MiniDB/core"
	"github.com/nickyhof/MiniDB/db"
	"github.com/nickyhof/MiniDB/internal/logging"
)

// tasksTable backs the demo page.
const tasksTable = "tasks"

const createTasksTable = "CREATE TABLE " + tasksTable + " (id INT PRIMARY KEY, title TEXT NOT NULL, done BOOL NOT NULL)"

var tasksPage = template.Must(template.New("tasks").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>MiniDB Tasks</title>
</head>
<body>
  <h1>MiniDB Tasks</h1>
  {{if .Error}}<p style="color: #b91c1c;">{{.Error}}</p>{{end}}

  <h2>Add task</h2>
  <form method="post" action="/tasks/add">
    <label>ID (int): <input name="id" required /></label><br />
    <label>Title (text): <input name="title" required /></label><br />
    <label>Done (true/false): <input name="done" value="false" /></label><br />
    <button type="submit">Add</button>
  </form>

  <h2>Tasks</h2>
  {{if not .Tasks}}
    <p>No tasks yet.</p>
  {{else}}
    <table border="1" cellpadding="6" cellspacing="0">
      <tr><th>id</th><th>title</th><th>done</th><th>actions</th></tr>
      {{range .Tasks}}
      <tr>
        <td>{{.ID}}</td>
        <td>{{.Title}}</td>
        <td>{{.Done}}</td>
        <td>
          <form method="post" action="/tasks/delete" style="display:inline;">
            <input type="hidden" name="id" value="{{.ID}}" />
            <button type="submit">Delete</button>
          </form>
        </td>
      </tr>
      {{end}}
    </table>
  {{end}}
</body>
</html>
`))

// Task is one row of the tasks table.
type Task struct {
	ID    int64
	Title string
	Done  bool
}

type tasksView struct {
	Tasks []Task
	Error string
}

// ensureTasksTable creates the tasks table on first use. A concurrent
// creation by another request is not an error.
func (s *Server) ensureTasksTable() error {
	if _, err := s.engine.Describe(tasksTable); err == nil {
		return nil
	}
	if _, err := s.engine.Execute(createTasksTable); err != nil && core.KindOf(err) != core.SchemaError {
		return err
	}
	return nil
}

func (s *Server) listTasks() ([]Task, error) {
	result, err := s.engine.Execute("SELECT id, title, done FROM " + tasksTable)
	if err != nil {
		return nil, err
	}

	rows := result.(db.QueryResult).Rows
	tasks := make([]Task, 0, len(rows))
	for _, row := range rows {
		id, _ := row[0].Int()
		title, _ := row[1].Text()
		done, _ := row[2].Bool()
		tasks = append(tasks, Task{ID: id, Title: title, Done: done})
	}
	return tasks, nil
}

// renderTasks writes the page. A non-empty message is shown above the form.
func (s *Server) renderTasks(w http.ResponseWriter, r *http.Request, status int, message string) {
	view := tasksView{Error: message}
	if err := s.ensureTasksTable(); err != nil {
		view.Error = err.Error()
		status = statusFor(db.OutcomeOf(nil, err))
	} else if tasks, err := s.listTasks(); err != nil {
		view.Error = err.Error()
		status = statusFor(db.OutcomeOf(nil, err))
	} else {
		view.Tasks = tasks
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tasksPage.Execute(w, view); err != nil {
		logging.ErrorContext(r.Context(), "failed to render tasks page", "error", err)
	}
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	s.renderTasks(w, r, http.StatusOK, "")
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureTasksTable(); err != nil {
		s.renderTasks(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("id")), 10, 64)
	if err != nil {
		s.renderTasks(w, r, http.StatusBadRequest, "id must be an integer")
		return
	}
	title := r.FormValue("title")
	if strings.TrimSpace(title) == "" {
		s.renderTasks(w, r, http.StatusBadRequest, "title must not be empty")
		return
	}
	doneValue := strings.TrimSpace(r.FormValue("done"))
	if doneValue == "" {
		doneValue = "false"
	}
	done, err := strconv.ParseBool(strings.ToLower(doneValue))
	if err != nil {
		s.renderTasks(w, r, http.StatusBadRequest, "done must be true or false")
		return
	}

	query := fmt.Sprintf("INSERT INTO %s (id, title, done) VALUES (%s, %s, %s)", tasksTable,
		core.IntValue(id).SQL(), core.TextValue(title).SQL(), core.BoolValue(done).SQL())
	if s.redirectOrRender(w, r, query) {
		logging.InfoContext(r.Context(), "task added", "id", id)
	}
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureTasksTable(); err != nil {
		s.renderTasks(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("id")), 10, 64)
	if err != nil {
		s.renderTasks(w, r, http.StatusBadRequest, "id must be an integer")
		return
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", tasksTable, core.IntValue(id).SQL())
	if s.redirectOrRender(w, r, query) {
		logging.InfoContext(r.Context(), "task deleted", "id", id)
	}
}

// redirectOrRender runs query and sends the browser back to the page, or
// renders the page with the error. It reports whether the query succeeded.
func (s *Server) redirectOrRender(w http.ResponseWriter, r *http.Request, query string) bool {
	outcome := s.execute(r.Context(), query)
	if outcome.Failed() {
		s.renderTasks(w, r, statusFor(outcome), fmt.Sprintf("%s: %s", outcome.ErrorKind, outcome.Message))
		return false
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
	return true
}
