package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidyai-rag/internal/bootstrap"
	"vidyai-rag/internal/config"
	"vidyai-rag/internal/platform/logger"
	httptransport "vidyai-rag/internal/transport/http"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	appLog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer appLog.Sync()

	app, err := bootstrap.New(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			appLog.Error("close resources failed", "error", err)
		}
	}()

	if err := app.StartWorker(ctx); err != nil {
		appLog.Error("start worker failed", "error", err)
		return
	}

	router := httptransport.NewRouter(app)
	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(server, appLog)
}

func waitForShutdown(server *http.Server, appLog *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server shutdown failed", "error", err)
	}
	appLog.Info("server stopped, waiting for in-flight ingestion jobs")
}
