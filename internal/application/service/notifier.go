package service

import (
	"context"
	"fmt"

	"github.com/officesync/timeline/internal/application/dispatcher"
	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/event"
)

const systemActorName = "Sistem"

// MentionNotifier tells mentioned users once when a task is completed
type MentionNotifier struct {
	mentions port.MentionRepository
	emitter  port.NotificationEmitter
	logger   Logger
}

// NewMentionNotifier creates a new MentionNotifier
func NewMentionNotifier(mentions port.MentionRepository, emitter port.NotificationEmitter, logger Logger) *MentionNotifier {
	return &MentionNotifier{
		mentions: mentions,
		emitter:  emitter,
		logger:   logger,
	}
}

// Register subscribes the notifier to task completion
func (n *MentionNotifier) Register(d dispatcher.Dispatcher) {
	d.Subscribe("mention-notifier", n.Handle, event.TypeTaskCompleted)
}

// Handle runs inside the completing transaction. Each mention is flagged as
// notified as it is emitted, so a later completion of the same task finds
// nothing left to send.
func (n *MentionNotifier) Handle(ctx context.Context, evt *event.Event) error {
	pending, err := n.mentions.ListUnnotified(ctx, evt.TaskID)
	if err != nil {
		return fmt.Errorf("list unnotified mentions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	actorName := evt.GetPayloadString("actor_name")
	if actorName == "" {
		actorName = systemActorName
	}
	title := evt.GetPayloadString("title")
	taskID := evt.TaskID

	for _, m := range pending {
		err := n.emitter.Emit(ctx, &entity.Notification{
			UserID:  m.UserID,
			Title:   "✅ Tugas Selesai!",
			Message: fmt.Sprintf("%s telah menyelesaikan tugas \"%s\". Anda dapat melanjutkan pekerjaan Anda.", actorName, title),
			Type:    entity.NotificationCompleted,
			TaskID:  &taskID,
		})
		if err != nil {
			return fmt.Errorf("notify user %d: %w", m.UserID, err)
		}
		if err := n.mentions.MarkNotified(ctx, m.ID); err != nil {
			return fmt.Errorf("mark mention %d: %w", m.ID, err)
		}
	}

	n.logger.Info("Mentioned users notified", "task_id", evt.TaskID, "count", len(pending))
	return nil
}

// notificationEmitter records in-app notifications and announces each one
// with a notification.created event. Inside a transaction the event waits in
// the context's outbox, so nothing leaves the process before commit.
type notificationEmitter struct {
	notifications port.NotificationRepository
	events        dispatcher.Dispatcher
	logger        Logger
}

// NewNotificationEmitter creates a NotificationEmitter
func NewNotificationEmitter(notifications port.NotificationRepository, events dispatcher.Dispatcher, logger Logger) port.NotificationEmitter {
	return &notificationEmitter{
		notifications: notifications,
		events:        events,
		logger:        logger,
	}
}

// Emit writes the notification record in the caller's transaction. Callers
// holding a transaction must carry an outbox in ctx.
func (e *notificationEmitter) Emit(ctx context.Context, n *entity.Notification) error {
	if err := e.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	var taskID int64
	if n.TaskID != nil {
		taskID = *n.TaskID
	}
	evt := event.NewEvent(event.TypeNotificationCreated, taskID, n.UserID, "", map[string]interface{}{
		"notification_id": n.ID,
		"title":           n.Title,
		"message":         n.Message,
	})
	if !dispatcher.Defer(ctx, evt) {
		e.events.DispatchAsync(context.WithoutCancel(ctx), evt)
	}
	return nil
}

// ChatRelay pushes committed notifications to the recipient's chat account.
// Delivery is best effort: failures reach the dispatcher log only.
type ChatRelay struct {
	staff  port.StaffDirectory
	sender port.MessageSender
	logger Logger
}

// NewChatRelay creates a new ChatRelay
func NewChatRelay(staff port.StaffDirectory, sender port.MessageSender, logger Logger) *ChatRelay {
	return &ChatRelay{
		staff:  staff,
		sender: sender,
		logger: logger,
	}
}

// Register subscribes the relay to new notifications
func (r *ChatRelay) Register(d dispatcher.Dispatcher) {
	d.Subscribe("chat-relay", r.Handle, event.TypeNotificationCreated)
}

// Handle sends one notification. Recipients without a chat account are skipped.
func (r *ChatRelay) Handle(ctx context.Context, evt *event.Event) error {
	recipient, err := r.staff.GetByID(ctx, evt.StaffID)
	if err != nil {
		return fmt.Errorf("look up recipient %d: %w", evt.StaffID, err)
	}
	if recipient == nil || recipient.LarkOpenID == "" {
		return nil
	}

	content := evt.GetPayloadString("title") + "\n" + evt.GetPayloadString("message")
	if err := r.sender.SendMessage(ctx, recipient.LarkOpenID, content); err != nil {
		return fmt.Errorf("push notification %d: %w", evt.GetPayloadInt("notification_id"), err)
	}

	r.logger.Info("Notification pushed", "user_id", evt.StaffID, "notification_id", evt.GetPayloadInt("notification_id"))
	return nil
}
