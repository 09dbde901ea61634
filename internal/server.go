package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/dhwaniris/permsync/internal/config"
	"github.com/dhwaniris/permsync/internal/directory"
	"github.com/dhwaniris/permsync/internal/event"
	"github.com/dhwaniris/permsync/internal/grant"
	"github.com/dhwaniris/permsync/internal/mapping"
	"github.com/dhwaniris/permsync/internal/pushsubscription"
	"github.com/dhwaniris/permsync/internal/settings"
	"github.com/dhwaniris/permsync/pkg/cerr"
	"github.com/dhwaniris/permsync/pkg/clog"
)

type Server struct {
	server                 *http.Server
	env                    *config.Env
	mappingServer          *mapping.Server
	grantServer            *grant.Server
	directoryServer        *directory.Server
	settingsServer         *settings.Server
	pushSubscriptionServer *pushsubscription.Server
	eventServer            *event.Server
}

func NewServer(
	env *config.Env,
	mappingServer *mapping.Server,
	grantServer *grant.Server,
	directoryServer *directory.Server,
	settingsServer *settings.Server,
	pushSubscriptionServer *pushsubscription.Server,
	eventServer *event.Server,
) *Server {
	return &Server{
		env:                    env,
		mappingServer:          mappingServer,
		grantServer:            grantServer,
		directoryServer:        directoryServer,
		settingsServer:         settingsServer,
		pushSubscriptionServer: pushSubscriptionServer,
		eventServer:            eventServer,
	}
}

// ListenAndServe starts the HTTP server. The provided context is used as the
// base context for all incoming requests via http.Server.BaseContext. When ctx
// is cancelled (e.g. on shutdown signal), event stream contexts are also
// cancelled, allowing the server to shut down without waiting for streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(
				clog.SlogChiMiddleware(),
				cerr.NewJSONResponseChiMiddleware(),
			)
			s.mappingServer.Register(r)
			s.grantServer.Register(r)
			s.directoryServer.Register(r)
			s.settingsServer.Register(r)
			s.pushSubscriptionServer.Register(r)
			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
			})
		})
		// The SSE stream writes to the response directly, so it stays
		// outside the JSON response middleware.
		r.Group(func(r chi.Router) {
			r.Use(clog.SlogChiMiddleware())
			s.eventServer.Register(r)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.apiKeyMiddleware(mux)), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip API key check for the health endpoint.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.Header.Get("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
