package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"kodomo/inventoryhub/internal/config"
)

type MailSender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

type sender struct {
	email string
	name  string
}

func newSender(cfg config.MailConfig) (sender, error) {
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return sender{}, fmt.Errorf("mail from_email is required")
	}
	if _, err := mail.ParseAddress(cfg.FromEmail); err != nil {
		return sender{}, fmt.Errorf("invalid mail from_email: %w", err)
	}
	return sender{email: cfg.FromEmail, name: strings.TrimSpace(cfg.FromName)}, nil
}

func (s sender) header() string {
	if s.name == "" {
		return s.email
	}
	return (&mail.Address{Name: s.name, Address: s.email}).String()
}

func checkRecipient(to string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", fmt.Errorf("recipient email is required")
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return "", fmt.Errorf("invalid recipient email: %w", err)
	}
	return to, nil
}
