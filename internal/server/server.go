// Package server exposes metrics, published state and operator inputs over HTTP.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/librescoot/tickfsm/flywheel"
	"github.com/librescoot/tickfsm/mode"
	"github.com/librescoot/tickfsm/telemetry"
)

// Deps are the values the handlers read and write. Every field is safe for
// concurrent use with the control loop.
type Deps struct {
	Gatherer prometheus.Gatherer
	Table    *telemetry.Table
	Mode     *mode.Switch
	Inputs   map[string]*mode.Latch
	Flywheel *flywheel.Flywheel
	Logger   *zap.Logger
}

// NewRouter builds the HTTP routes
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, d.Table.Snapshot())
	})

	r.Get("/flywheel", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, d.Flywheel.Inputs())
	})

	r.Get("/mode", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"mode": d.Mode.Get().String()})
	})

	r.Post("/mode/{mode}", func(w http.ResponseWriter, req *http.Request) {
		m, err := mode.Parse(chi.URLParam(req, "mode"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		d.Mode.Set(m)
		d.Logger.Info("mode requested", zap.Stringer("mode", m))
		writeJSON(w, http.StatusOK, map[string]string{"mode": m.String()})
	})

	r.Post("/inputs/{name}/{action}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		latch, ok := d.Inputs[name]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown input " + name})
			return
		}

		var v bool
		switch action := chi.URLParam(req, "action"); action {
		case "press":
			latch.Set(true)
			v = true
		case "release":
			latch.Set(false)
		case "toggle":
			v = latch.Toggle()
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action " + action})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{name: v})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
