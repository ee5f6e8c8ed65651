package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"guardians/internal/config"
	"guardians/internal/domain"
	"guardians/internal/infra/metrics"
	"guardians/internal/infra/ratelimit"
	"guardians/internal/platform/logger"
	"guardians/internal/usecase"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg config.Config
	r   *gin.Engine
	log *logger.Logger

	lifecycle *usecase.LifecycleController
	registry  usecase.AttestationRegistry
	verifier  *usecase.VerificationReader
	uploader  *usecase.ContentUploader
	licenses  *usecase.LicenseService
	attempts  usecase.SubmissionAttemptRepository
	metrics   *metrics.Registry
	clock     func() time.Time
	hasDB     bool

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

type ServerDeps struct {
	Lifecycle   *usecase.LifecycleController
	Registry    usecase.AttestationRegistry
	Verifier    *usecase.VerificationReader
	Uploader    *usecase.ContentUploader
	Licenses    *usecase.LicenseService
	Attempts    usecase.SubmissionAttemptRepository
	Metrics     *metrics.Registry
	RateLimiter domain.RateLimiter
	Logger      *logger.Logger
	Clock       func() time.Time
	HasDB       bool
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:       cfg,
		r:         r,
		log:       deps.Logger,
		lifecycle: deps.Lifecycle,
		registry:  deps.Registry,
		verifier:  deps.Verifier,
		uploader:  deps.Uploader,
		licenses:  deps.Licenses,
		attempts:  deps.Attempts,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		hasDB:     deps.HasDB,
	}
	if s.registry == nil && s.lifecycle != nil {
		s.registry = s.lifecycle.Registry
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	r.Use(s.requestID(), s.accessLog())
	r.SetHTMLTemplate(template.Must(template.New(badgeTemplateName).Parse(badgeHTML)))
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			} else {
				s.log.Warn("redis rate limiter unavailable, using memory", "error", err)
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.hasDB {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"mode":    dbMode,
			"ledger":  s.cfg.LedgerMode,
			"network": s.cfg.Network(),
		})
	})
	s.r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.r.GET("/verify/:contentCid/embed", s.rateLimited(routeVerifyRead), s.handleEmbedBadge)

	v1 := s.r.Group("/v1")
	{
		v1.GET("/attestations/:contentCid", s.rateLimited(routeAttestationsRead), s.handleCheckExisting)
		v1.POST("/attestations", s.requireAdminKey(), s.rateLimited(routeAttestationsWrite), s.handleSubmit)
		v1.POST("/attestations/:contentCid/revoke", s.requireAdminKey(), s.rateLimited(routeAttestationsWrite), s.handleRevoke)
		v1.GET("/owners/:owner/attestations", s.rateLimited(routeAttestationsRead), s.handleListByOwner)
		v1.GET("/attempts/:address", s.rateLimited(routeAttestationsRead), s.handleListAttempts)

		v1.GET("/verify/:contentCid", s.rateLimited(routeVerifyRead), s.handleVerify)

		v1.POST("/content", s.requireAdminKey(), s.rateLimited(routeContentWrite), s.handleUpload)

		v1.POST("/licenses", s.requireAdminKey(), s.rateLimited(routeLicensesWrite), s.handleCreateLicense)
		v1.GET("/licenses/:contentCid", s.rateLimited(routeLicensesRead), s.handleLatestLicense)
		v1.GET("/licenses/:contentCid/evaluate", s.rateLimited(routeLicensesRead), s.handleEvaluateUsage)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("http server listening", "addr", s.cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
