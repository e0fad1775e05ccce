package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pulsekeep/pulsekeep/internal/domain/ping"
	"github.com/pulsekeep/pulsekeep/internal/obs"
)

func SetupRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", obs.MetricsHandler())

	r.Route("/ping/{code}", func(r chi.Router) {
		pingMethods(r, "/", s.handlePing(ping.KindSuccess))
		pingMethods(r, "/start", s.handlePing(ping.KindStart))
		pingMethods(r, "/fail", s.handlePing(ping.KindFail))
		pingMethods(r, "/{exitstatus:[0-9]+}", s.handlePingExitStatus)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Route("/checks", func(r chi.Router) {
			r.Get("/", s.handleListChecks)
			r.Post("/", s.handleCreateCheck)

			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", s.handleGetCheck)
				r.Post("/", s.handleUpdateCheck)
				r.Delete("/", s.handleDeleteCheck)
				r.Post("/pause", s.handlePause)
				r.Post("/resume", s.handleResume)
				r.Get("/timeline", s.handleTimeline)
				r.Get("/pings", s.handleListPings)
				r.Get("/pings/{n:[0-9]+}/body", s.handlePingBody)
				r.Get("/flips", s.handleFlips)
				r.Get("/downtimes", s.handleDowntimes)
				r.Get("/channels", s.handleCheckChannels)
				r.Get("/notifications", s.handleCheckNotifications)
				r.Get("/stream", s.handleStream)
			})
		})

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", s.handleListChannels)
			r.Post("/", s.handleCreateChannel)
			r.Delete("/{id:[0-9]+}", s.handleDeleteChannel)
		})
	})

	return otelhttp.NewHandler(r, "api")
}

// The ingestion endpoints take GET and HEAD besides POST so that curl
// one-liners and uptime probes work unchanged.
func pingMethods(r chi.Router, pattern string, h http.HandlerFunc) {
	r.Get(pattern, h)
	r.Post(pattern, h)
	r.Head(pattern, h)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := s.db.Pool.Ping(ctx); err != nil {
		http.Error(w, "unhealthy: db", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
