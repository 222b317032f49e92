package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	"github.com/railzwaylabs/callsync/internal/callsync"
	"github.com/railzwaylabs/callsync/internal/config"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	usagedomain "github.com/railzwaylabs/callsync/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// SyncService is the part of the orchestrator exposed over HTTP.
type SyncService interface {
	SyncTenant(ctx context.Context, tenantID string) (callsync.SyncResult, error)
	SyncAll(ctx context.Context) (callsync.SweepResult, error)
	Calls(ctx context.Context, tenantID string, refresh bool) ([]callsdomain.CallRecord, error)
	AllCalls(ctx context.Context, since *time.Time, refresh bool) ([]callsdomain.CallRecord, error)
	Stats(ctx context.Context, tenantID string) (usagedomain.Stats, error)
	Notifications(ctx context.Context, tenantID string) ([]tenantdomain.Notification, error)
	Notify(ctx context.Context, tenantID, title, message string, kind tenantdomain.NotificationKind) (tenantdomain.Notification, error)
	DeleteTenant(ctx context.Context, tenantID string) error
}

type Params struct {
	fx.In

	Config config.Config
	Sync   SyncService
	Store  tenantdomain.Store
	DB     *gorm.DB `optional:"true"`
	Log    *zap.Logger
}

type Server struct {
	cfg    config.Config
	sync   SyncService
	store  tenantdomain.Store
	db     *gorm.DB
	log    *zap.Logger
	engine *gin.Engine
}

func New(p Params) *Server {
	if !p.Config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:   p.Config,
		sync:  p.Sync,
		store: p.Store,
		db:    p.DB,
		log:   p.Log.Named("server"),
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/readyz", s.Readyz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api", s.TokenRequired())
	api.POST("/sync", s.SyncAll)
	api.GET("/calls", s.ListAllCalls)

	api.GET("/tenants", s.ListTenants)
	api.PUT("/tenants/:id", s.UpsertTenant)
	api.DELETE("/tenants/:id", s.DeleteTenant)
	api.POST("/tenants/:id/sync", s.SyncTenant)
	api.GET("/tenants/:id/calls", s.ListCalls)
	api.GET("/tenants/:id/stats", s.GetStats)
	api.GET("/tenants/:id/notifications", s.ListNotifications)
	api.POST("/tenants/:id/notifications", s.CreateNotification)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Start serves the API for the lifetime of the fx application.
func Start(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
