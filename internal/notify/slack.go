package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imroc/req/v3"
)

var ErrSlackDisabled = errors.New("slack disabled")

type Slack struct {
	Webhook string
	Client  *req.Client
}

// NewSlack returns nil when no webhook is configured.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  req.C().SetTimeout(10 * time.Second),
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil || s.Webhook == "" {
		return ErrSlackDisabled
	}
	resp, err := s.Client.R().
		SetContext(ctx).
		SetBodyJsonMarshal(slackPayload{Text: "*" + title + "*\n" + text}).
		Post(s.Webhook)
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	if !resp.IsSuccessState() {
		return fmt.Errorf("slack: non-2xx: %s", resp.Status)
	}
	return nil
}
