package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/autoextract/internal/services"
	"github.com/Lllllllleong/autoextract/internal/store"
	"github.com/gin-gonic/gin"
)

func (a *API) handleStartWatch(c *gin.Context) {
	if a.mail == nil {
		respondCode(c, http.StatusServiceUnavailable, "mail_disabled", "mail pipeline is not configured")
		return
	}

	resp, err := a.mail.StartWatch(c.Request.Context())
	if errors.Is(err, services.ErrNoTopic) {
		respondCode(c, http.StatusServiceUnavailable, "mail_disabled", err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to start mail watch", "error", err)
		respondMessage(c, http.StatusBadGateway, "failed to register gmail watch")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleListNotifications(c *gin.Context) {
	if a.board == nil {
		c.JSON(http.StatusOK, []store.Notification{})
		return
	}
	c.JSON(http.StatusOK, a.board.List())
}

func (a *API) handleDismissNotification(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respondMessage(c, http.StatusBadRequest, "token is required")
		return
	}
	if a.board != nil {
		a.board.Dismiss(token)
	}
	c.Status(http.StatusNoContent)
}
