package server

import (
	"context"
	"fmt"

	"github.com/jos-ren/sors-ledger/internal/config"
	"github.com/jos-ren/sors-ledger/internal/handler"
	"github.com/jos-ren/sors-ledger/internal/middleware"
	"github.com/jos-ren/sors-ledger/pkg/logger"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo          *echo.Echo
	cfg           *config.Config
	logger        *logger.Logger
	importHandler *handler.ImportHandler
	healthHandler *handler.HealthHandler
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	importHandler *handler.ImportHandler,
	healthHandler *handler.HealthHandler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &Server{
		echo:          e,
		cfg:           cfg,
		logger:        log,
		importHandler: importHandler,
		healthHandler: healthHandler,
	}
}

func (s *Server) Start() error {
	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info(context.Background(), "Starting HTTP server",
		"address", addr,
	)

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echoMiddleware.Recover())
	s.echo.Use(echoMiddleware.CORS())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Logging(s.logger))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler.Check)

	s.echo.GET("/banks", s.importHandler.ListBanks)
	s.echo.GET("/categories", s.importHandler.ListCategories)

	s.echo.POST("/sessions", s.importHandler.CreateSession)
	s.echo.GET("/sessions/:id", s.importHandler.GetSession)
	s.echo.POST("/sessions/:id/files", s.importHandler.UploadFile)
	s.echo.POST("/sessions/:id/files/:file/bank", s.importHandler.ReassignBank)

	s.echo.POST("/sessions/:id/transactions/:txid/resolve", s.importHandler.ResolveConflict)
	s.echo.POST("/sessions/:id/transactions/:txid/undo", s.importHandler.UndoResolution)
	s.echo.POST("/sessions/:id/transactions/:txid/category", s.importHandler.AssignCategory)
	s.echo.POST("/sessions/:id/transactions/:txid/acknowledge", s.importHandler.Acknowledge)
	s.echo.POST("/sessions/:id/transactions/:txid/duplicate", s.importHandler.SetDuplicateAction)
	s.echo.POST("/sessions/:id/duplicates/skip-all", s.importHandler.SkipAllDuplicates)
	s.echo.POST("/sessions/:id/duplicates/import-all", s.importHandler.ImportAllDuplicates)

	s.echo.POST("/sessions/:id/commit", s.importHandler.Commit)
}

func (s *Server) Handler() *echo.Echo {
	s.setupMiddleware()
	s.setupRoutes()
	return s.echo
}
