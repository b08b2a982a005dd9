package store

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// NotificationKind is the severity of a transient user-facing status.
type NotificationKind string

const (
	NotifyLoading NotificationKind = "loading"
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Notifier surfaces transient status to the user. Calls sharing a token
// replace each other rather than stacking.
type Notifier interface {
	Loading(token, message string)
	Success(token, message string)
	Error(token, message string)
}

// Notification is the latest status shown for one token.
type Notification struct {
	Token   string           `json:"token"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}

// LogNotifier writes notifications as structured log lines.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Loading(token, message string) {
	n.logger.Info(message, "token", token, "kind", NotifyLoading)
}

func (n *LogNotifier) Success(token, message string) {
	n.logger.Info(message, "token", token, "kind", NotifySuccess)
}

func (n *LogNotifier) Error(token, message string) {
	n.logger.Warn(message, "token", token, "kind", NotifyError)
}

// Board keeps the latest notification per token so a UI can poll it. Each
// notification is also forwarded to next when set.
type Board struct {
	mu    sync.Mutex
	byKey map[string]Notification
	next  Notifier
	now   func() time.Time
}

func NewBoard(next Notifier) *Board {
	return &Board{byKey: map[string]Notification{}, next: next, now: time.Now}
}

func (b *Board) Loading(token, message string) {
	b.put(token, NotifyLoading, message)
	if b.next != nil {
		b.next.Loading(token, message)
	}
}

func (b *Board) Success(token, message string) {
	b.put(token, NotifySuccess, message)
	if b.next != nil {
		b.next.Success(token, message)
	}
}

func (b *Board) Error(token, message string) {
	b.put(token, NotifyError, message)
	if b.next != nil {
		b.next.Error(token, message)
	}
}

func (b *Board) put(token string, kind NotificationKind, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byKey[token] = Notification{Token: token, Kind: kind, Message: message, At: b.now()}
}

// Get returns the latest notification for token.
func (b *Board) Get(token string) (Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.byKey[token]
	return n, ok
}

// List returns all notifications, oldest first.
func (b *Board) List() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, 0, len(b.byKey))
	for _, n := range b.byKey {
		out = append(out, n)
	}
	slices.SortFunc(out, func(x, y Notification) int {
		if c := x.At.Compare(y.At); c != 0 {
			return c
		}
		return strings.Compare(x.Token, y.Token)
	})
	return out
}

// Dismiss drops the notification for token.
func (b *Board) Dismiss(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byKey, token)
}
