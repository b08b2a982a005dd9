package main

import (
	"log/slog"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/autoextract/internal/entrypoint"
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Gmail pushes arrive as Pub/Sub messagePublished CloudEvents.
	functions.CloudEvent("HandleGmailNotification", entrypoint.HandleGmailNotification)
}

// main is required by the Go Functions Framework.
func main() {}
