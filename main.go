package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/flinthq/flint/http"
	"github.com/flinthq/flint/telemetry"
)

var (
	addr           = pflag.String("addr", "0.0.0.0:8080", "listen address")
	workers        = pflag.Int("workers", http.DefaultWorkerPoolSize, "worker pool size")
	queueSize      = pflag.Int("queue", http.DefaultConnQueueSize, "pending connection queue size")
	readTimeout    = pflag.Duration("read-timeout", http.DefaultReadTimeout, "socket read timeout")
	writeTimeout   = pflag.Duration("write-timeout", http.DefaultWriteTimeout, "socket write timeout")
	idleTimeout    = pflag.Duration("idle-timeout", http.DefaultIdleTimeout, "keep-alive idle timeout")
	maxHeaderBytes = pflag.Int("max-header-bytes", http.DefaultMaxHeaderBytes, "request header size limit")
	maxBodyBytes   = pflag.Int("max-body-bytes", http.DefaultMaxBodyBytes, "request body size limit")
	verbose        = pflag.CountP("verbose", "v", "increase log verbosity")
	enableOTLP     = pflag.Bool("otlp", false, "export telemetry over OTLP (configure via OTEL_* env)")
)

func main() {
	pflag.Parse()

	if err := run(context.Background()); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var logger *slog.Logger
	if *enableOTLP {
		shutdown, err := telemetry.Setup(ctx)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(flushCtx)
		}()
		logger = telemetry.NewLogger("flint")
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(*verbose),
		}))
	}

	server := http.NewServer("flint")
	server.Logger = logger
	server.Workers = *workers
	server.ConnQueueSize = *queueSize
	server.ReadTimeout = *readTimeout
	server.WriteTimeout = *writeTimeout
	server.IdleTimeout = *idleTimeout
	server.MaxHeaderBytes = *maxHeaderBytes
	server.MaxBodyBytes = *maxBodyBytes

	server.Router.Use(
		http.RecoverMiddleware(logger),
		http.RequestIDMiddleware(),
		http.AccessLogMiddleware(logger),
	)
	if *enableOTLP {
		server.Router.Use(http.MetricsMiddleware(), http.TracingMiddleware())
	}

	server.Router.GET("/", func(ctx *http.RequestCtx) {
		ctx.Response.WithText("flint is up\n")
	})
	server.Router.GET("/greet/:name", func(ctx *http.RequestCtx) {
		name, _ := ctx.Request.Param("name")
		ctx.Response.WithText("hello, " + name + "\n")
	})

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", *addr)
		serverErrCh <- server.ListenAndServe(ctx, *addr)
	}()

	select {
	case err := <-serverErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func logLevel(verbosity int) slog.Level {
	switch {
	case verbosity >= 2:
		return slog.LevelDebug
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}
