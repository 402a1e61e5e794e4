package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jeno-bellido/ich-backend/internal/metrics"
	"github.com/jeno-bellido/ich-backend/internal/util"
	"github.com/jeno-bellido/ich-backend/services/review/internal/app"
	"github.com/jeno-bellido/ich-backend/services/review/internal/security"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	serviceName     = "review"
	maxRequestBytes = 1 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Metrics        *metrics.Collector
	Gatherer       prometheus.Gatherer
	CORSOrigins    []string
	CookieSecure   bool
	TrustedProxies *util.TrustedProxies
	Alerter        *security.AuditAlerter
}

// Server exposes the review platform over HTTP.
type Server struct {
	app            *app.App
	metrics        *metrics.Collector
	gatherer       prometheus.Gatherer
	corsOrigins    []string
	cookieSecure   bool
	trustedProxies *util.TrustedProxies
	alerter        *security.AuditAlerter
	router         chi.Router
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	s := &Server{
		app:            cfg.App,
		metrics:        cfg.Metrics,
		gatherer:       cfg.Gatherer,
		corsOrigins:    origins,
		cookieSecure:   cfg.CookieSecure,
		trustedProxies: cfg.TrustedProxies,
		alerter:        cfg.Alerter,
		router:         chi.NewRouter(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.router
	if s.metrics != nil {
		h = s.metrics.Instrument(h)
	}
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog(serviceName, s.trustedProxies, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeInvalidRequest, "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer))
	}

	// identity
	r.Get("/check-email/{email}", s.handleCheckEmail)
	r.Get("/check-google-id/{googleId}", s.handleCheckGoogleID)
	r.Post("/register", s.handleRegister)
	r.Post("/registergoogle", s.handleRegisterGoogle)
	r.Post("/login", s.handleLogin)
	r.Post("/logingoogle", s.handleLoginGoogle)
	r.Get("/logout", s.handleLogout)

	// products & ratings; submission and listing are public
	r.Get("/fetchproducts", s.handleListProducts)
	r.Post("/ratingreview", s.handleSubmitRating)
	r.Get("/fetchproductaverage/{id}", s.handleProductAverage)

	// public user reads
	r.Get("/getuserdata", s.handleGetUserData)
	r.Get("/search", s.handleSearch)
	r.Get("/fetchuserbyid/{id}", s.handleUserByID)

	r.Group(func(r chi.Router) {
		r.Use(s.verifySession)
		r.Get("/", s.handleMe)
		r.Get("/getuserandrating", s.handleProfile)
		r.Put("/editprofile", s.handleEditProfile)
		r.Post("/createproducts", s.handleCreateProduct)
		r.Get("/fetchproductbyid/{id}", s.handleProductByID)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}
