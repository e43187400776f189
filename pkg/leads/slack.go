package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts new leads to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
}

func NewSlackNotifier(webhookURL string) (*SlackNotifier, error) {
	if webhookURL == "" {
		return nil, errors.New("leads: slack webhook url is required")
	}
	return &SlackNotifier{webhookURL: webhookURL}, nil
}

func (n *SlackNotifier) Notify(ctx context.Context, lead Lead) error {
	fields := []slack.AttachmentField{
		{Title: "SĐT", Value: lead.Phone, Short: true},
		{Title: "Kênh", Value: lead.Channel, Short: true},
	}
	if lead.CountryInterest != "" {
		fields = append(fields, slack.AttachmentField{Title: "Quan tâm", Value: lead.CountryInterest, Short: true})
	}
	if lead.SpecialCase != "" {
		fields = append(fields, slack.AttachmentField{Title: "Trường hợp đặc biệt", Value: lead.SpecialCase, Short: true})
	}
	if lead.OriginalQuery != "" {
		fields = append(fields, slack.AttachmentField{Title: "Câu hỏi ban đầu", Value: lead.OriginalQuery})
	}

	color := "good"
	if lead.SpecialCase != "" {
		color = "warning"
	}

	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("Lead mới từ %s: %s", lead.Source, lead.Description),
		Attachments: []slack.Attachment{{
			Color:  color,
			Fields: fields,
			Footer: lead.ID,
		}},
	}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return fmt.Errorf("post lead to slack: %w", err)
	}
	return nil
}
