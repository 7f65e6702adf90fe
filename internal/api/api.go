// Package api serves trademark searches over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/marksearch/internal/metrics"
	"github.com/sells-group/marksearch/internal/model"
	"github.com/sells-group/marksearch/internal/store"
)

// Searcher runs searches; *aggregate.Orchestrator satisfies it.
type Searcher interface {
	Search(ctx context.Context, sourceID, query string) (model.SourceResult, error)
	SearchAll(ctx context.Context, query string) model.AggregateResult
}

// Options configures the API.
type Options struct {
	Name    string
	Version string
	// Labels lists the registry labels reported by GET /.
	Labels []string
	// BrowserStarted reports whether the browser engine is running.
	BrowserStarted func() bool
	// Store records search history; nil disables /history.
	Store   store.Store
	Metrics *metrics.Metrics

	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// Server holds the API's dependencies.
type Server struct {
	search  Searcher
	opts    Options
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates a Server. A non-positive RateLimitRPS disables rate limiting.
func New(search Searcher, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "marksearch"
	}
	if opts.BrowserStarted == nil {
		opts.BrowserStarted = func() bool { return false }
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{
		search: search,
		opts:   opts,
		log:    zap.L().With(zap.String("component", "api")),
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/history", s.handleHistory)
	r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())

	r.Route("/scrape", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/all", s.handleSearchAll)
		r.Get("/{source}", s.handleSearchSource)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "not found")
	})
	return r
}
