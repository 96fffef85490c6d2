package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/udalga/alkiscord/internal/config"
	"github.com/udalga/alkiscord/internal/handler"
	"github.com/udalga/alkiscord/internal/hub"
	"github.com/udalga/alkiscord/internal/registry"
	"github.com/udalga/alkiscord/internal/service"
	"github.com/udalga/alkiscord/internal/session"
	"github.com/udalga/alkiscord/internal/upload"
	pkglog "github.com/udalga/alkiscord/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "alkiscord"})
	logger := pkglog.L()

	locks := service.NewRoomLocks()
	reg := registry.New(registry.Config{
		RoomTTL:         cfg.Room.TTL,
		EmptyRoomTTL:    cfg.Room.EmptyTTL,
		DefaultMaxUsers: cfg.Room.DefaultMaxUsers,
		OnRoomDeleted:   locks.Forget,
	})
	binder := session.NewBinder()
	wsHub := hub.New(cfg.WebSocket)

	roomSvc := service.NewRoomService(wsHub, reg, binder, locks)
	signalSvc := service.NewSignalService(wsHub, reg, binder, locks)

	uploads, err := upload.NewStore(cfg.Upload)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize upload store")
	}
	logger.Info().Str("dir", uploads.BasePath()).Int64("max_size", uploads.MaxSize()).Msg("upload store ready")

	wsHandler := handler.NewWSHandler(wsHub, roomSvc, signalSvc)
	httpHandler := handler.NewHTTPHandler(reg, uploads)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	httpHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)
	r.Static("/uploads", uploads.BasePath())

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("alkiscord listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("alkiscord stopped")
}
