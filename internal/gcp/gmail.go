package gcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lllllllleong/autoextract/internal/models"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrHistoryExpired is returned by MessagesSince when Gmail no longer keeps
// history that far back. The caller has to restart from a fresh historyId.
var ErrHistoryExpired = errors.New("gmail history checkpoint expired")

// GmailSource reads a watched mailbox through the Gmail API.
type GmailSource struct {
	svc  *gmail.Service
	user string
}

// NewGmailSource creates a Gmail client for user ("me" for the credentials'
// own mailbox) using Application Default Credentials.
func NewGmailSource(ctx context.Context, user string, opts ...option.ClientOption) (*GmailSource, error) {
	if user == "" {
		user = "me"
	}
	opts = append([]option.ClientOption{option.WithScopes(gmail.GmailReadonlyScope)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService: %w", err)
	}
	return &GmailSource{svc: svc, user: user}, nil
}

// Watch registers push notifications for the inbox on topic.
func (g *GmailSource) Watch(ctx context.Context, topic string) (*models.WatchResponse, error) {
	resp, err := g.svc.Users.Watch(g.user, &gmail.WatchRequest{
		TopicName: topic,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to register gmail watch: %w", err)
	}
	return &models.WatchResponse{HistoryID: resp.HistoryId, Expiration: resp.Expiration}, nil
}

// MessagesSince lists the IDs of inbox messages added after historyID.
func (g *GmailSource) MessagesSince(ctx context.Context, historyID uint64) ([]string, error) {
	var ids []string
	seen := map[string]bool{}
	call := g.svc.Users.History.List(g.user).
		StartHistoryId(historyID).
		HistoryTypes("messageAdded").
		LabelId("INBOX")
	err := call.Pages(ctx, func(page *gmail.ListHistoryResponse) error {
		for _, h := range page.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil || seen[added.Message.Id] {
					continue
				}
				seen[added.Message.Id] = true
				ids = append(ids, added.Message.Id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, historyListError(historyID, err)
	}
	return ids, nil
}

// historyListError marks a 404 from history.list, which Gmail returns for a
// startHistoryId outside its retention window, as ErrHistoryExpired.
func historyListError(historyID uint64, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("gmail history since %d: %w: %w", historyID, ErrHistoryExpired, err)
	}
	return fmt.Errorf("failed to list gmail history since %d: %w", historyID, err)
}

// Attachments downloads every named attachment of a message.
func (g *GmailSource) Attachments(ctx context.Context, messageID string) ([]models.Attachment, error) {
	msg, err := g.svc.Users.Messages.Get(g.user, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	var out []models.Attachment
	for _, part := range attachmentParts(msg.Payload) {
		encoded := part.Body.Data
		if part.Body.AttachmentId != "" {
			body, err := g.svc.Users.Messages.Attachments.Get(g.user, messageID, part.Body.AttachmentId).Context(ctx).Do()
			if err != nil {
				return nil, fmt.Errorf("failed to get attachment %s of message %s: %w", part.Filename, messageID, err)
			}
			encoded = body.Data
		}
		data, err := decodeBase64URL(encoded)
		if err != nil {
			slog.Warn("Skipping undecodable attachment", "messageId", messageID, "filename", part.Filename, "error", err)
			continue
		}
		out = append(out, models.Attachment{
			MessageID: messageID,
			Filename:  part.Filename,
			MimeType:  part.MimeType,
			Data:      data,
		})
	}
	return out, nil
}

// attachmentParts walks a MIME tree and returns the parts carrying a file.
func attachmentParts(part *gmail.MessagePart) []*gmail.MessagePart {
	if part == nil {
		return nil
	}
	var out []*gmail.MessagePart
	if part.Filename != "" && part.Body != nil && (part.Body.AttachmentId != "" || part.Body.Data != "") {
		out = append(out, part)
	}
	for _, child := range part.Parts {
		out = append(out, attachmentParts(child)...)
	}
	return out
}

// decodeBase64URL accepts both padded and unpadded URL-safe base64, Gmail
// uses either depending on the endpoint.
func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	return base64.RawURLEncoding.DecodeString(s)
}
