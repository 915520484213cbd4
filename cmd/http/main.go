package main

import (
	"context"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flokiorg/lngateway/http"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/pkg/version"
	"github.com/flokiorg/lngateway/service"
)

func main() {
	issueTokenDays := flag.Uint64("issue-token", 0, "print an API token valid for N days and exit")
	tokenPermission := flag.String("token-permission", "full", "permission of the issued token: full or readonly")
	flag.Parse()

	logger.Logger.Info().Str("version", version.Tag).Msg("Lightning gateway starting in HTTP mode")

	// Create a channel to receive OS signals.
	osSignalChannel := make(chan os.Signal, 1)
	// Notify the channel on os.Interrupt, syscall.SIGTERM. os.Kill cannot be caught.
	signal.Notify(osSignalChannel, os.Interrupt, syscall.SIGTERM, syscall.SIGPIPE)

	ctx, cancel := context.WithCancel(context.Background())

	var signal os.Signal
	go func() {
		for {
			// wait for exit signal
			signal = <-osSignalChannel
			logger.Logger.Info().Interface("signal", signal).Msg("Received OS signal")

			if signal == syscall.SIGPIPE {
				logger.Logger.Warn().Interface("signal", signal).Msg("Ignoring SIGPIPE signal")
				continue
			}

			cancel()
			break
		}
	}()

	svc, err := service.NewService(ctx)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create service")
		return
	}

	httpSvc := http.NewHttpService(svc)

	if *issueTokenDays > 0 {
		token, err := httpSvc.CreateJWT(issueTokenDays, *tokenPermission)
		svc.Shutdown()
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to issue token")
			return
		}
		fmt.Println(token)
		return
	}

	e := echo.New()

	//register shared routes
	httpSvc.RegisterSharedRoutes(e)
	//start Echo server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", svc.GetConfig().GetEnv().Port)); err != nil && err != nethttp.ErrServerClosed {
			logger.Logger.Error().Err(err).Msg("echo server failed to start")
			cancel()
		}
	}()

	//handle graceful shutdown
	<-ctx.Done()
	logger.Logger.Info().Interface("signal", signal).Msg("Context Done")
	logger.Logger.Info().Msg("Shutting down echo server...")
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = e.Shutdown(ctx)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to shutdown echo server")
	}
	logger.Logger.Info().Msg("Echo server exited")
	svc.Shutdown()
	logger.Logger.Info().Msg("Service exited")
	logger.Logger.Info().Msg("Payments still in flight are picked up again on the next start")
}
