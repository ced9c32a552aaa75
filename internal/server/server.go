package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sharenet/packetpool/internal/audit"
	"github.com/sharenet/packetpool/internal/buyer"
	buyerdomain "github.com/sharenet/packetpool/internal/buyer/domain"
	"github.com/sharenet/packetpool/internal/config"
	"github.com/sharenet/packetpool/internal/pool"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	"github.com/sharenet/packetpool/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	audit.Module,
	buyer.Module,
	pool.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())
	return r
}

type ServerParam struct {
	fx.In

	Engine       *gin.Engine
	Log          *zap.Logger
	Config       config.Config
	PoolSvc      pooldomain.Service
	BuyerSvc     buyerdomain.Service
	ClaimLimiter *ratelimit.ClaimLimiter `optional:"true"`
}

type Server struct {
	engine       *gin.Engine
	log          *zap.Logger
	cfg          config.Config
	poolSvc      pooldomain.Service
	buyerSvc     buyerdomain.Service
	claimLimiter *ratelimit.ClaimLimiter
}

func NewServer(p ServerParam) *Server {
	return &Server{
		engine:       p.Engine,
		log:          p.Log.Named("http.server"),
		cfg:          p.Config,
		poolSvc:      p.PoolSvc,
		buyerSvc:     p.BuyerSvc,
		claimLimiter: p.ClaimLimiter,
	}
}

func registerRoutes(s *Server) {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/v1", s.BuyerAuthMiddleware())
	{
		api.POST("/packets/pull", s.pullPackets)
		api.POST("/packets/:uuid/status", s.updatePacketStatus)
		api.GET("/packets/active", s.activePackets)
		api.GET("/usage", s.buyerUsage)
	}

	// Admin surface; deployment fronts it with its own authentication.
	admin := s.engine.Group("/admin")
	{
		admin.POST("/buyers", s.createBuyer)
		admin.GET("/buyers", s.listBuyers)
		admin.POST("/buyers/:id/active", s.setBuyerActive)
		admin.POST("/packages", s.provisionPackages)
		admin.POST("/packages/:uuid/revoke", s.revokePackage)
	}
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				s.log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
