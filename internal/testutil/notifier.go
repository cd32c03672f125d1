package testutil

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/yamdb/yamdb-api/internal/notify"
)

// ErrDeliveryFailed is what FailingNotifier returns.
var ErrDeliveryFailed = errors.New("smtp relay unavailable")

var codeLine = regexp.MustCompile(`confirmation code: ([A-Za-z0-9]+)`)

// RecordingNotifier keeps every sent message in memory.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *RecordingNotifier) Send(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *RecordingNotifier) Messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.messages...)
}

// LastCode extracts the confirmation code from the latest message to email.
func (n *RecordingNotifier) LastCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.messages) - 1; i >= 0; i-- {
		if n.messages[i].To != email {
			continue
		}
		if code := ConfirmationCodeIn(n.messages[i].Body); code != "" {
			return code
		}
	}
	return ""
}

// ConfirmationCodeIn extracts the code from a confirmation message body.
func ConfirmationCodeIn(body string) string {
	if m := codeLine.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// FailingNotifier rejects every message.
type FailingNotifier struct{}

func (FailingNotifier) Send(ctx context.Context, msg notify.Message) error {
	return ErrDeliveryFailed
}
