// Package dashboard is the read-only HTTP control surface (§6): job
// counts, the worker table, and the most recently updated jobs. It has no
// mutation endpoints; enqueue/retry/config changes are CLI-only.
package dashboard

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/store"
)

const recentJobLimit = 20

// New builds the dashboard's http.Handler over s.
func New(s store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := &handler{store: s}
	r.Get("/", h.index)
	r.Get("/healthz", h.healthz)
	return r
}

type handler struct {
	store store.Store
}

type pageData struct {
	Stats      models.Stats
	Workers    []models.WorkerRegistration
	RecentJobs []*models.Job
	Now        time.Time
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<title>queuectl dashboard</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; margin-bottom: 2rem; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.5rem; text-align: left; }
.state-dead { color: #b00; }
.state-completed { color: #070; }
.state-processing { color: #b70; }
</style>
</head>
<body>
<h1>queuectl</h1>

<h2>Counts</h2>
<table>
<tr><th>pending</th><th>processing</th><th>completed</th><th>dead</th><th>total</th></tr>
<tr>
<td>{{.Stats.Pending}}</td>
<td>{{.Stats.Processing}}</td>
<td>{{.Stats.Completed}}</td>
<td>{{.Stats.Dead}}</td>
<td>{{.Stats.Total}}</td>
</tr>
</table>

<h2>Workers</h2>
<table>
<tr><th>id</th><th>pid</th><th>started_at</th><th>heartbeat_at</th><th>status</th></tr>
{{range .Workers}}
<tr>
<td>{{.ID}}</td>
<td>{{.PID}}</td>
<td>{{.StartedAt}}</td>
<td>{{.HeartbeatAt}}</td>
<td>{{.Status}}</td>
</tr>
{{end}}
</table>

<h2>Recent jobs</h2>
<table>
<tr><th>id</th><th>command</th><th>state</th><th>attempts</th><th>updated_at</th></tr>
{{range .RecentJobs}}
<tr>
<td>{{.ID}}</td>
<td>{{.Command}}</td>
<td class="state-{{.State}}">{{.State}}</td>
<td>{{.Attempts}}/{{.MaxRetries}}</td>
<td>{{.UpdatedAt}}</td>
</tr>
{{end}}
</table>

<p>rendered {{.Now}}</p>
</body>
</html>
`))

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	workers, err := h.store.ListWorkers(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	recent, err := h.store.RecentJobs(ctx, recentJobLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := pageData{Stats: stats, Workers: workers, RecentJobs: recent, Now: time.Now().UTC()}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := h.store.Stats(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
