package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/dukerupert/familyos/internal/model"
)

const (
	queueSize    = 256
	maxBodyRunes = 120
)

// Sender delivers one notification.
type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// SubscriptionStore is the subset of the push store the notifier needs.
type SubscriptionStore interface {
	ListRecipients(familyID string, excludeUserID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

type job struct {
	familyName   string
	senderUserID int64
	msg          model.Message
}

// Notifier fans new chat messages out to the other members' devices from a
// background goroutine, so request handlers never wait on push services.
type Notifier struct {
	mu     sync.RWMutex
	sender Sender
	subs   SubscriptionStore
	logger *slog.Logger
	queue  chan job
	cancel context.CancelFunc
	done   chan struct{}
}

func NewNotifier(sender Sender, subs SubscriptionStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		subs:   subs,
		logger: logger,
		queue:  make(chan job, queueSize),
	}
}

// Start begins draining the queue.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-n.queue:
				n.deliver(j)
			}
		}
	}()
}

// Stop stops the worker. Queued notifications are dropped.
func (n *Notifier) Stop() {
	n.mu.RLock()
	cancel := n.cancel
	done := n.done
	n.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// MessageCreated queues a notification for msg. It never blocks; when the
// queue is full the notification is dropped.
func (n *Notifier) MessageCreated(familyName string, senderUserID int64, msg model.Message) {
	select {
	case n.queue <- job{familyName: familyName, senderUserID: senderUserID, msg: msg}:
	default:
		n.logger.Warn("push queue full, dropping notification", "family_id", msg.FamilyID, "message_id", msg.ID)
	}
}

func (n *Notifier) deliver(j job) {
	subs, err := n.subs.ListRecipients(j.msg.FamilyID, j.senderUserID)
	if err != nil {
		n.logger.Error("list push recipients", "family_id", j.msg.FamilyID, "error", err)
		return
	}

	payload := MessagePayload(j.familyName, j.msg)
	for i := range subs {
		err := n.sender.Send(&subs[i], payload)
		if errors.Is(err, ErrExpired) {
			if err := n.subs.DeleteByEndpoint(subs[i].Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "id", subs[i].ID, "error", err)
			}
			continue
		}
		if err != nil {
			n.logger.Warn("send push", "subscription_id", subs[i].ID, "error", err)
		}
	}
}

// MessagePayload builds the notification shown for a new chat message.
func MessagePayload(familyName string, msg model.Message) Payload {
	body := msg.Text
	if body == "" {
		switch msg.MediaKind {
		case model.MediaImage:
			body = "sent a photo"
		case model.MediaVideo:
			body = "sent a video"
		case model.MediaAudio:
			body = "sent a voice message"
		default:
			body = "sent a file"
		}
	}
	if utf8.RuneCountInString(body) > maxBodyRunes {
		body = string([]rune(body)[:maxBodyRunes-1]) + "…"
	}

	return Payload{
		Title: msg.SenderName + " · " + familyName,
		Body:  body,
		URL:   fmt.Sprintf("/chat?family_id=%s", msg.FamilyID),
		Tag:   model.NotifTypeChatMessage + "-" + msg.FamilyID,
	}
}
