package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/visitpulse/backend/internal/agents"
	"github.com/visitpulse/backend/internal/domaincheck"
	"github.com/visitpulse/backend/internal/visits"
	"github.com/visitpulse/backend/pkg/jwt"
	"github.com/visitpulse/backend/pkg/ratelimiter"
)

const defaultTokenTTL = time.Hour

// Deps carries everything the router needs. Tracker, Agents, Checker, Tokens
// and the websocket handler are required; limiters are optional.
type Deps struct {
	Tracker *visits.Tracker
	Agents  *agents.Service
	Checker *domaincheck.Checker
	Tokens  *jwt.Service

	// LiveFeed serves the websocket subscription endpoint.
	LiveFeed http.Handler

	// IssuanceLimiter throttles unauthenticated routes by client IP.
	// TrackingLimiter throttles authenticated routes by credential subject.
	IssuanceLimiter *ratelimiter.TokenBucket
	TrackingLimiter *ratelimiter.TokenBucket

	// Liveness and Readiness serve the probe endpoints when set.
	Liveness  http.Handler
	Readiness http.Handler

	TokenTTL time.Duration
	Logger   *slog.Logger
}

type api struct {
	tracker  *visits.Tracker
	agents   *agents.Service
	checker  *domaincheck.Checker
	tokens   *jwt.Service
	tokenTTL time.Duration
	log      *slog.Logger
}

// NewRouter assembles the public HTTP surface: credential issuance, visit
// tracking, the agent registry, domain health probes, and the live
// subscription endpoint.
func NewRouter(deps Deps) (http.Handler, error) {
	switch {
	case deps.Tracker == nil:
		return nil, errors.New("httpapi: tracker is required")
	case deps.Agents == nil:
		return nil, errors.New("httpapi: agents service is required")
	case deps.Checker == nil:
		return nil, errors.New("httpapi: domain checker is required")
	case deps.Tokens == nil:
		return nil, errors.New("httpapi: token service is required")
	case deps.LiveFeed == nil:
		return nil, errors.New("httpapi: live feed handler is required")
	}

	if deps.TokenTTL <= 0 {
		deps.TokenTTL = defaultTokenTTL
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	a := &api{
		tracker:  deps.Tracker,
		agents:   deps.Agents,
		checker:  deps.Checker,
		tokens:   deps.Tokens,
		tokenTTL: deps.TokenTTL,
		log:      deps.Logger,
	}

	auth := jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
		Service: deps.Tokens,
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			writeErrorCode(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
		},
	})

	publicLimit := passthrough
	if deps.IssuanceLimiter != nil {
		publicLimit = ratelimiter.MiddlewareWithConfig(ratelimiter.MiddlewareConfig{
			Limiter: deps.IssuanceLimiter,
			Key:     clientIPKey,
			OnLimit: onRateLimit,
		})
	}

	trackingLimit := passthrough
	if deps.TrackingLimiter != nil {
		trackingLimit = ratelimiter.MiddlewareWithConfig(ratelimiter.MiddlewareConfig{
			Limiter: deps.TrackingLimiter,
			Key:     subjectKey,
			OnLimit: onRateLimit,
		})
	}

	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Route("/mgt", func(r chi.Router) {
		r.With(publicLimit).Post("/generate-token/", a.generateToken)
	})

	r.Route("/monitoring", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth, trackingLimit)
			r.Post("/visit/", a.trackVisit)
			r.Put("/visit/{id}/close", a.closeVisit)
		})
		r.With(publicLimit).Get("/visits/{domain}", a.listVisits)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth, trackingLimit)
		r.Post("/register/", a.registerAgent)
		r.Put("/update/{id}", a.updateAgent)
	})
	r.With(publicLimit).Get("/agents/{domain}", a.listAgents)

	r.Route("/services", func(r chi.Router) {
		r.Use(publicLimit)
		r.Get("/monitoring/{domain}", a.checkStatus)
		r.Get("/response_time/{domain}", a.checkResponseTime)
		r.Get("/ssl/{domain}", a.checkSSL)
		r.Get("/ip", a.publicIP)
	})

	r.Get("/ws/visits", deps.LiveFeed.ServeHTTP)

	if deps.Liveness != nil {
		r.Get("/healthz", deps.Liveness.ServeHTTP)
	}
	if deps.Readiness != nil {
		r.Get("/readyz", deps.Readiness.ServeHTTP)
	}

	return r, nil
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func onRateLimit(w http.ResponseWriter, r *http.Request, result *ratelimiter.Result) {
	writeErrorCode(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, slow down")
}
