// Package sms sends text messages through Twilio.
package sms

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"sms-relay-go/internal/config"
)

// Sender sends a single message. Twilio does not guarantee that separate
// messages arrive in the order they were sent.
type Sender interface {
	Send(ctx context.Context, to, from, body string) (string, error)
}

// messageCreator is the slice of the Twilio REST client this package uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type twilioSender struct {
	api messageCreator
}

// NewClient creates a Twilio backed Sender.
func NewClient(cfg config.TwilioConfig) Sender {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &twilioSender{api: rest.Api}
}

// Send creates one outbound message and returns its Twilio sid.
func (s *twilioSender) Send(ctx context.Context, to, from, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to create twilio message: %w", err)
	}
	if msg == nil || msg.Sid == nil {
		return "", nil
	}
	return *msg.Sid, nil
}
