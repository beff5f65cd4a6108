// File: internal/infra/web/server.go
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"membership-payments/internal/config"
	"membership-payments/internal/infra/logging"
	"membership-payments/internal/infra/redis"
	"membership-payments/internal/infra/worker"
	"membership-payments/internal/usecase"
)

// RateLimiter is the slice of the redis limiter the HTTP layer needs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	cfg        *config.Config
	subUC      usecase.SubscriptionUseCase
	orderUC    usecase.EventOrderUseCase
	donationUC usecase.DonationUseCase
	paymentUC  usecase.PaymentUseCase
	webhookUC  usecase.WebhookUseCase
	pool       *worker.Pool
	limiter    RateLimiter
	auth       *AuthManager
	log        *zerolog.Logger
}

func NewServer(
	cfg *config.Config,
	subUC usecase.SubscriptionUseCase,
	orderUC usecase.EventOrderUseCase,
	donationUC usecase.DonationUseCase,
	paymentUC usecase.PaymentUseCase,
	webhookUC usecase.WebhookUseCase,
	pool *worker.Pool,
	limiter RateLimiter,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "Server").Logger()
	return &Server{
		cfg:        cfg,
		subUC:      subUC,
		orderUC:    orderUC,
		donationUC: donationUC,
		paymentUC:  paymentUC,
		webhookUC:  webhookUC,
		pool:       pool,
		limiter:    limiter,
		auth:       auth,
		log:        &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.traceMiddleware)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.rateLimit("subscription")).Post("/subscriptions", s.handleSubscriptionInitiate)
		r.Delete("/subscriptions", s.handleSubscriptionCancel)

		r.With(s.rateLimit("event_order")).Post("/events/{eventID}/orders", s.handleEventOrderCreate)
		r.Post("/events/orders/checkin", s.handleEventCheckIn)

		r.With(s.rateLimit("donation")).Post("/donations", s.handleDonationCreate)

		r.Post("/payments/webhook", s.handleWebhook)
		r.Get("/payments/callback", s.handleCallback)
		r.Get("/payments/{reference}/status", s.handlePaymentStatus)

		// Simulator endpoints never exist in production.
		if s.cfg.MockEndpointsAllowed() {
			r.Post("/testing/payments/{trackingID}/complete", s.handleTestingComplete)
			r.Post("/testing/payments/{trackingID}/cancel", s.handleTestingCancel)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Post("/session", s.handleAdminSession)
			r.Group(func(r chi.Router) {
				r.Use(s.auth.Middleware)
				r.Post("/payments/{paymentID}/refund", s.handleRefund)
			})
		})
	})
	return r
}

// traceMiddleware stamps every request with a trace id and logs completion.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Request-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Request-Id", traceID)

		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.With(ctx, s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Msg("request")
	})
}

// rateLimit buckets checkout initiations per client address. A missing
// limiter (tests) or a limiter error fails open.
func (s *Server) rateLimit(flow string) func(http.Handler) http.Handler {
	const (
		limit  = 10
		window = time.Minute
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter != nil {
				key := redis.InitiationKey(r.RemoteAddr, flow)
				ok, err := s.limiter.Allow(r.Context(), key, limit, window)
				if err == nil && !ok {
					writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
