package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"vidiwise/internal/domain/model"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/metrics"
	"vidiwise/internal/usecase"
)

// Dashboard is the surface of application.DashboardFacade the gateway serves.
type Dashboard interface {
	SubmitVideo(ctx context.Context, url string) (model.Job, error)
	JobSnapshot(ctx context.Context, id string) (model.Job, error)
	CancelJob(ctx context.Context, id string) (model.Job, error)
	OpenChat(ctx context.Context, jobID string) (*model.ChatSession, error)
	SendChat(ctx context.Context, sessionID, message string) (*model.ChatSession, error)
	GetChat(ctx context.Context, sessionID string) (*model.ChatSession, error)
	ListChats(ctx context.Context, jobID string) ([]*model.ChatSession, error)
	EndChat(ctx context.Context, sessionID string) error
	Library(ctx context.Context) ([]model.Video, error)
	RenameVideo(ctx context.Context, id, title string) (string, error)
	DeleteVideo(ctx context.Context, id string) error
	BackendHealthy(ctx context.Context) bool
	JobStats(ctx context.Context, recent int) (usecase.JobStats, error)
}

type Server struct {
	dash      Dashboard
	auth      *AuthManager
	limiter   RateLimiter
	perMinute int
	timeout   time.Duration
	log       *zerolog.Logger
}

type Option func(*Server)

// WithRateLimit enables the per-subject limit on /api/v1 routes.
func WithRateLimit(l RateLimiter, perMinute int) Option {
	return func(s *Server) {
		s.limiter = l
		s.perMinute = perMinute
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func NewServer(dash Dashboard, auth *AuthManager, logger *zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		dash:    dash,
		auth:    auth,
		timeout: 60 * time.Second,
		log:     logging.Component(logger, "gateway"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the gateway router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, RequestLog(s.log), Recover(s.log))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		if s.limiter != nil && s.perMinute > 0 {
			r.Use(RateLimit(s.limiter, s.perMinute, s.log))
		}
		r.Use(Timeout(s.timeout))

		r.Post("/jobs", s.submitJob)
		r.Get("/jobs/{id}", s.getJob)
		r.Delete("/jobs/{id}", s.cancelJob)

		r.Get("/videos", s.listVideos)
		r.Put("/videos/{id}/title", s.renameVideo)
		r.Delete("/videos/{id}", s.deleteVideo)
		r.Post("/videos/{id}/chat", s.openChat)
		r.Get("/videos/{id}/chats", s.listChats)

		r.Get("/chats/{sid}", s.getChat)
		r.Delete("/chats/{sid}", s.endChat)
		r.Post("/chats/{sid}/turns", s.sendTurn)

		r.Get("/stats", s.stats)
	})
	return r
}

// Run serves addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errC := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("gateway listening")
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logger(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}
