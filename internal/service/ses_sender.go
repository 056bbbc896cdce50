package service

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"kodomo/inventoryhub/internal/config"
)

type sesSender struct {
	client *sesv2.Client
	from   sender
}

func NewSESSender(client *sesv2.Client, cfg config.MailConfig) (MailSender, error) {
	from, err := newSender(cfg)
	if err != nil {
		return nil, err
	}
	return &sesSender{client: client, from: from}, nil
}

func (s *sesSender) Send(ctx context.Context, to string, subject string, body string) error {
	to, err := checkRecipient(to)
	if err != nil {
		return err
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.header()),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
