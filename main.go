package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/keti-tsn/trafficd/internal/config"
	"github.com/keti-tsn/trafficd/internal/domain"
	"github.com/keti-tsn/trafficd/internal/hub"
	"github.com/keti-tsn/trafficd/internal/service"
	"github.com/keti-tsn/trafficd/internal/sudo"
	handler "github.com/keti-tsn/trafficd/internal/transport/http"
	"github.com/keti-tsn/trafficd/internal/ws"
)

func main() {
	var host string
	var port int

	rootCmd := &cobra.Command{
		Use:          "trafficd",
		Short:        "Control plane for TSN traffic generation tools",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(host, port)
		},
	}
	rootCmd.Flags().StringVar(&host, "host", "", "bind address (overrides HOST)")
	rootCmd.Flags().IntVar(&port, "port", 0, "listen port (overrides HTTP_PORT)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(host string, port int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.HTTPPort = port
	}

	log.Printf("Starting trafficd on %s:%d", cfg.Host, cfg.HTTPPort)

	// Event hub: runners and the sudo session publish into it, websocket
	// observers consume from it.
	eventHub := hub.New()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go eventHub.Run(hubCtx)

	session := sudo.NewSession(cfg.SudoTimeout, eventHub)
	svc := service.New(cfg, eventHub, session)

	h := handler.NewHandler(svc)
	wsServer := ws.NewServer(cfg, eventHub, svc)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)
	e.GET("/ws", wsServer.HandleWebSocket)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down trafficd...")

	// Stop any active runs before taking the transport down.
	for _, tool := range domain.Tools {
		_ = svc.StopTool(tool)
	}
	session.Clear()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("trafficd stopped")
	return nil
}
