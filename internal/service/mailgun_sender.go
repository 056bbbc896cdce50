package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailgun/mailgun-go/v5"

	"kodomo/inventoryhub/internal/config"
)

type mailgunSender struct {
	client mailgun.Mailgun
	domain string
	from   sender
}

func NewMailgunSender(cfg config.MailConfig) (MailSender, error) {
	if strings.TrimSpace(cfg.Mailgun.Domain) == "" || strings.TrimSpace(cfg.Mailgun.APIKey) == "" {
		return nil, fmt.Errorf("mailgun domain and api_key are required")
	}
	from, err := newSender(cfg)
	if err != nil {
		return nil, err
	}
	return &mailgunSender{
		client: mailgun.NewMailgun(cfg.Mailgun.APIKey),
		domain: cfg.Mailgun.Domain,
		from:   from,
	}, nil
}

func (s *mailgunSender) Send(ctx context.Context, to string, subject string, body string) error {
	to, err := checkRecipient(to)
	if err != nil {
		return err
	}
	msg := mailgun.NewMessage(s.domain, s.from.header(), subject, body, to)
	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}
