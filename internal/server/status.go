package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/morezero/intent-bridge/pkg/hostcompat"
)

const statusLogPrefix = "server:status"

type connState interface {
	IsConnected() bool
}

type pendingCounter interface {
	Pending() int
}

type flowCounter interface {
	Len() int
}

type handlerState interface {
	HasHandler() bool
}

type facadeState interface {
	Configured() bool
	Name() string
	DisplayName() string
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Subjects are the NATS subjects the bridge uses.
type Subjects struct {
	Request  string `json:"request"`
	Response string `json:"response"`
	Invoke   string `json:"invoke"`
	Result   string `json:"result"`
}

// HealthChecks is the per-dependency part of HealthOutput. Journal is omitted
// when the journal is disabled.
type HealthChecks struct {
	Comms   bool  `json:"comms"`
	Journal *bool `json:"journal,omitempty"`
}

// JournalEnabled reports whether the journal was checked.
func (c HealthChecks) JournalEnabled() bool { return c.Journal != nil }

// JournalOK reports whether the journal answered its ping.
func (c HealthChecks) JournalOK() bool { return c.Journal != nil && *c.Journal }

// HealthOutput is served on /health.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Timestamp string       `json:"timestamp"`
}

// StatusOutput is served on /status and rendered on the home page.
type StatusOutput struct {
	Health      HealthOutput         `json:"health"`
	Connector   string               `json:"connector"`
	DisplayName string               `json:"displayName"`
	Configured  bool                 `json:"configured"`
	HandlerSet  bool                 `json:"handlerSet"`
	Pending     int                  `json:"pending"`
	InFlight    int                  `json:"inFlight"`
	Host        *hostcompat.HostInfo `json:"host,omitempty"`
	Subjects    Subjects             `json:"subjects"`
}

// statusSource gathers live state from the running components. journal is
// nil when the journal is disabled.
type statusSource struct {
	comms    connState
	pending  pendingCounter
	flows    flowCounter
	sink     handlerState
	facade   facadeState
	journal  pinger
	hostInfo *hostcompat.HostInfo
	subjects Subjects

	pingTimeout time.Duration
}

func (st *statusSource) health(ctx context.Context) HealthOutput {
	out := HealthOutput{
		Status:    "healthy",
		Checks:    HealthChecks{Comms: st.comms.IsConnected()},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !out.Checks.Comms {
		out.Status = "unhealthy"
	}
	if st.journal != nil {
		pingCtx, cancel := context.WithTimeout(ctx, st.pingTimeout)
		defer cancel()
		ok := st.journal.Ping(pingCtx) == nil
		out.Checks.Journal = &ok
		if !ok {
			out.Status = "unhealthy"
		}
	}
	return out
}

func (st *statusSource) status(ctx context.Context) StatusOutput {
	return StatusOutput{
		Health:      st.health(ctx),
		Connector:   st.facade.Name(),
		DisplayName: st.facade.DisplayName(),
		Configured:  st.facade.Configured(),
		HandlerSet:  st.sink.HasHandler(),
		Pending:     st.pending.Pending(),
		InFlight:    st.flows.Len(),
		Host:        st.hostInfo,
		Subjects:    st.subjects,
	}
}

// routes builds the HTTP mux. metricsHandler is mounted on /metrics.
func (s *Server) routes(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", s.handleReady())
	mux.HandleFunc("/status", s.handleStatus())
	mux.Handle("/metrics", metricsHandler)
	return mux
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := s.status.health(r.Context())
		code := http.StatusOK
		if h.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, h)
	}
}

// handleReady reports ready once the connector is configured and NATS is up.
func (s *Server) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.status.facade.Configured() || !s.status.comms.IsConnected() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.status.status(r.Context()))
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - json encode: %v", statusLogPrefix, err))
	}
}

// homePageTemplate is the HTML for the bridge status page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Intent Bridge</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; width: 200px; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>Intent Bridge</h1>
  <p class="meta">{{.DisplayName}} ({{.Connector}})</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>COMMS: {{if .Health.Checks.Comms}}<span class="stat">OK</span>{{else}}<span class="error">Disconnected</span>{{end}}</p>
    {{if .Health.Checks.JournalEnabled}}<p>Journal: {{if .Health.Checks.JournalOK}}<span class="stat">OK</span>{{else}}<span class="error">Failed</span>{{end}}</p>{{end}}
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Bridge</h2>
    <table>
      <tr><th>Configured</th><td>{{.Configured}}</td></tr>
      <tr><th>Response handler</th><td>{{if .HandlerSet}}registered{{else}}<span class="error">none</span>{{end}}</td></tr>
      <tr><th>Pending requests</th><td class="stat">{{.Pending}}</td></tr>
      <tr><th>In-flight flows</th><td class="stat">{{.InFlight}}</td></tr>
      {{with .Host}}<tr><th>Host</th><td>{{.Name}} {{.Version}}</td></tr>{{end}}
    </table>
  </section>

  <section>
    <h2>Subjects</h2>
    <table>
      <tr><th>Request</th><td>{{.Subjects.Request}}</td></tr>
      <tr><th>Response</th><td>{{.Subjects.Response}}</td></tr>
      <tr><th>Invoke</th><td>{{.Subjects.Invoke}}</td></tr>
      <tr><th>Results</th><td>{{.Subjects.Result}}</td></tr>
    </table>
  </section>
</body>
</html>
`

// handleHome returns an HTTP handler for the status home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data := s.status.status(r.Context())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", statusLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
