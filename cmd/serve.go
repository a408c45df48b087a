package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"deck-sync/core/loader"
	"deck-sync/core/logger"
	"deck-sync/core/middleware/auth"
	"deck-sync/core/middleware/rayid"
	"deck-sync/feature/deck"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd runs the control API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control API",
	Long:  `Starts the HTTP control API exposing accounts, sync sessions and conflicts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(context.Background())
		if err != nil {
			return err
		}
		defer a.close()
		logg := a.logger

		server := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		mgr := loader.NewManager()
		mgr.Register(deck.NewFeature(a.service))

		// RayID first so every later log line carries it.
		server.Use(rayid.New())

		server.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		if a.cfg.Server.IsProtected() {
			server.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey}))
		} else {
			logg.Warn("No API key configured, the control API is unprotected")
		}

		loaded, err := mgr.LoadAll(server)
		if err != nil {
			return err
		}
		logg.Info("Features loaded", zap.Strings("features", loaded))

		go func() {
			logg.Info("Starting server", zap.String("addr", a.cfg.Server.Addr()))
			if err := server.Listen(a.cfg.Server.Addr()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		return server.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
