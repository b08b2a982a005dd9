// Package entrypoint holds the Cloud Functions handlers. The application is
// built once per instance on the first invocation.
package entrypoint

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Lllllllleong/autoextract/internal/app"
	"github.com/Lllllllleong/autoextract/internal/config"
	"github.com/Lllllllleong/autoextract/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/gin-gonic/gin"
)

var (
	instance *app.App
	router   *gin.Engine
	once     sync.Once
	initErr  error
)

func initApp() {
	once.Do(func() {
		var cfg config.Config
		cfg, initErr = config.LoadConfig()
		if initErr != nil {
			return
		}
		gin.SetMode(gin.ReleaseMode)
		instance, initErr = app.New(context.Background(), cfg)
		if initErr != nil {
			return
		}
		router = instance.Router()
	})
}

// HandleAPI serves the JSON HTTP API.
func HandleAPI(w http.ResponseWriter, r *http.Request) {
	initApp()
	if initErr != nil {
		slog.Error("Critical: application initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}

// HandleGmailNotification consumes the Pub/Sub push Gmail sends for the
// watched mailbox.
func HandleGmailNotification(ctx context.Context, e cloudevents.Event) error {
	initApp()
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}
	if instance.Mail == nil {
		err := errors.New("mail pipeline is not configured: set GMAIL_TOPIC")
		slog.Error("Received a gmail notification with the mail pipeline disabled", "error", err)
		return err
	}

	n, err := services.ParseGmailNotification(e.Data())
	if err != nil {
		// A malformed push will never succeed on retry.
		slog.Error("Failed to parse gmail notification", "error", err, "eventId", e.ID(), "data", string(e.Data()))
		return nil
	}

	_, err = instance.Mail.HandleNotification(ctx, n)
	return err
}

// Shutdown releases the application's clients. Only the local runner calls it.
func Shutdown() error {
	if instance == nil {
		return nil
	}
	return instance.Close()
}
