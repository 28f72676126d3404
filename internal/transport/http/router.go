package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	appevents "event-settlement/internal/app/events"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterDeps struct {
	Events      *appevents.Service
	DB          Pinger
	MCP         http.Handler
	AdminAPIKey string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	eventHandlers := NewEventHandlers(deps.Events)
	adminHandlers := NewAdminHandlers(deps.Events, deps.DB)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	if deps.MCP != nil {
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", deps.MCP)
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", deps.MCP)
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", deps.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Route("/tenants/{tenant_id}", func(r chi.Router) {
			r.Get("/events", eventHandlers.List())
			r.Get("/events/{event_id}", eventHandlers.Get())
			r.Get("/events/{event_id}/result", eventHandlers.Result())

			r.Group(func(r chi.Router) {
				r.Use(UserMiddleware())
				r.Post("/events/{event_id}/join", eventHandlers.Join())
				r.Post("/events/{event_id}/slot", eventHandlers.SelectSlot())
				r.Post("/events/{event_id}/commit", eventHandlers.Commit())
				r.Post("/events/{event_id}/vote", eventHandlers.Vote())
				r.Get("/events/{event_id}/entry", eventHandlers.Entry())
				r.Put("/users/{user_id}/payout-address", eventHandlers.SetPayoutAddress())
				r.Get("/users/{user_id}/payout-address", eventHandlers.GetPayoutAddress())
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(deps.AdminAPIKey))

			r.Route("/admin/tenants/{tenant_id}", func(r chi.Router) {
				r.Get("/treasury", adminHandlers.GetTreasury())
				r.Put("/treasury", adminHandlers.PutTreasury())
				r.Post("/treasury/reset-budget", adminHandlers.ResetBudget())

				r.Group(func(r chi.Router) {
					r.Use(BodyCaptureMiddleware(4096))
					r.Post("/events", adminHandlers.CreateEvent())
					r.Get("/events", adminHandlers.ListEvents())
					r.Get("/events/{event_id}", adminHandlers.GetEvent())
					r.Post("/events/{event_id}/publish", adminHandlers.Publish())
					r.Put("/events/{event_id}/favorite", adminHandlers.SetFavorite())
					r.Post("/events/{event_id}/settle", adminHandlers.Settle())
					r.Post("/events/{event_id}/cancel", adminHandlers.Cancel())
					r.Get("/events/{event_id}/payouts", adminHandlers.Payouts())
				})
			})

			r.Route("/debug", func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
