package relay

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
)

type health struct {
	Status      string  `json:"status"`
	Connections int     `json:"connections"`
	RSS         uint64  `json:"rssBytes"`
	CPU         float64 `json:"cpuPercent"`
}

// NewRouter exposes the websocket endpoint, metrics and a health probe.
func NewRouter(hub *Hub) http.Handler {
	r := chi.NewRouter()
	if hub.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	r.Get("/ws", hub.ServeWs)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Handle("/metrics", promhttp.HandlerFor(hub.metrics.Registry, promhttp.HandlerOpts{}))
		r.Get("/healthz", hub.serveHealth)
	})
	return r
}

func (h *Hub) serveHealth(w http.ResponseWriter, _ *http.Request) {
	report := health{Status: "ok", Connections: h.Len()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfo(); err == nil {
			report.RSS = mem.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			report.CPU = cpu
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
