// Command local serves the API and the Gmail push endpoint on one port for
// development. Settings are read from the environment and an optional .env.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/Lllllllleong/autoextract/internal/entrypoint"
	"github.com/Lllllllleong/autoextract/internal/gcp"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	ctx := context.Background()
	if err := funcframework.RegisterCloudEventFunctionContext(ctx, "/pubsub/gmail", entrypoint.HandleGmailNotification); err != nil {
		slog.Error("Failed to register gmail handler", "error", err)
		os.Exit(1)
	}
	if err := funcframework.RegisterHTTPFunctionContext(ctx, "/", entrypoint.HandleAPI); err != nil {
		slog.Error("Failed to register API handler", "error", err)
		os.Exit(1)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		if err := entrypoint.Shutdown(); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
		os.Exit(0)
	}()

	port := gcp.GetEnv("PORT", "8080")
	slog.Info("Starting local server.", "port", port)
	if err := funcframework.Start(port); err != nil {
		slog.Error("Local server stopped", "error", err)
		os.Exit(1)
	}
}
