package messaging

import (
	"context"
	"fmt"
	"time"
)

// EmailSender hands notifications to the mail relay through the notification topic
type EmailSender struct {
	publisher Publisher
	topic     string
	from      string
	now       func() time.Time
}

// NewEmailSender creates an EmailSender publishing to topic
func NewEmailSender(publisher Publisher, topic, from string) *EmailSender {
	return &EmailSender{publisher: publisher, topic: topic, from: from, now: time.Now}
}

func (s *EmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	msg := EmailMessage{
		From:      s.from,
		To:        recipient,
		Subject:   subject,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.publisher.PublishEvent(ctx, s.topic, recipient, msg); err != nil {
		return fmt.Errorf("publish email: %w", err)
	}
	return nil
}
