package notify

import (
	"context"
	"time"
)

// Message is one outgoing email.
type Message struct {
	To      string    `json:"to"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Notifier delivers messages to users. Send returns only after the message
// was accepted by the channel or delivery failed.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// ConfirmationMessage builds the signup email carrying a confirmation code.
func ConfirmationMessage(from, to, username, code string) Message {
	return Message{
		To:      to,
		From:    from,
		Subject: "YaMDb confirmation code",
		Body: "Hello, " + username + "!\n\n" +
			"Your confirmation code: " + code + "\n\n" +
			"Exchange it together with your username at /api/v1/auth/token to get an access token.\n",
	}
}
