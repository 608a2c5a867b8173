package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/model"
	"github.com/go-warden/voice/internal/platform"
)

// Card colors for log-channel messages.
const (
	colorCreated  = 0x00ff00
	colorInfo     = 0x00ae86
	colorWarn     = 0xffa500
	colorDeleted  = 0xff0000
	colorOwner    = 0x9b59b6
	colorClaimed  = 0xffa500
	colorDisposed = 0x00ff00
)

// AuditSink persists lifecycle events. Implemented by repository.AuditRepository.
type AuditSink interface {
	Append(ctx context.Context, rec *model.AuditRecord) error
}

// FeedPublisher pushes lifecycle events to live dashboard subscribers.
// Implemented by feed.Hub.
type FeedPublisher interface {
	Publish(event string, payload interface{})
}

// Notifier fans one lifecycle event out to the platform log channel, the
// audit log and the dashboard feed. Every sink is best-effort: a failed
// notification is logged and swallowed, never aborting the state transition
// that produced it.
type Notifier struct {
	platform platform.Client
	audit    AuditSink
	feed     FeedPublisher
	logger   *zap.Logger
}

func NewNotifier(pc platform.Client, audit AuditSink, feed FeedPublisher, logger *zap.Logger) *Notifier {
	return &Notifier{
		platform: pc,
		audit:    audit,
		feed:     feed,
		logger:   logger,
	}
}

// Notify sends the card to logChannelID (skipped when empty) and records the
// audit entry.
func (n *Notifier) Notify(ctx context.Context, logChannelID string, spec platform.MessageSpec, action model.AuditAction, roomID, identityID, detail string) {
	if logChannelID != "" {
		if _, err := n.platform.SendMessage(ctx, logChannelID, spec); err != nil {
			n.logger.Warn("Failed to send log message",
				zap.String("channel_id", logChannelID),
				zap.String("action", string(action)),
				zap.Error(err),
			)
		}
	}

	rec := &model.AuditRecord{
		ID:         uuid.New().String(),
		Action:     action,
		RoomID:     roomID,
		IdentityID: identityID,
		Detail:     detail,
		CreatedAt:  time.Now(),
	}
	if n.audit != nil {
		if err := n.audit.Append(ctx, rec); err != nil {
			n.logger.Warn("Failed to append audit record",
				zap.String("action", string(action)),
				zap.Error(err),
			)
		}
	}
	if n.feed != nil {
		n.feed.Publish(string(action), rec)
	}
}
